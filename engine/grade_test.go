package engine_test

import (
	"testing"

	"github.com/waygrade/travel-engine/engine"
)

func TestGradeFor_Levels(t *testing.T) {
	table := engine.DefaultGradeTable()

	tests := []struct {
		stamps    int
		wantLevel int
	}{
		{0, 0},
		{1, 0},
		{2, 0},
		{3, 1},
		{5, 1},
		{6, 2},
		{9, 3},
		{11, 3},
		{12, 4},
		{13, 4},
		{999, 4}, // capped at the top level
	}

	for _, tt := range tests {
		g := table.GradeFor(tt.stamps)
		if g.Level != tt.wantLevel {
			t.Errorf("GradeFor(%d).Level = %d, want %d", tt.stamps, g.Level, tt.wantLevel)
		}
		if g.StampCount != tt.stamps {
			t.Errorf("GradeFor(%d).StampCount = %d", tt.stamps, g.StampCount)
		}
	}
}

func TestGradeFor_CarriesTableFields(t *testing.T) {
	table := engine.DefaultGradeTable()

	g := table.GradeFor(0)
	if g.Name == "" || g.Color == "" || g.Icon == "" {
		t.Errorf("level 0 grade missing display fields: %+v", g)
	}

	top := table.GradeFor(12)
	if top.Name != table[4].Name {
		t.Errorf("level 4 name = %q, want %q", top.Name, table[4].Name)
	}
}
