/*
grade.go - Derived traveler grade

PURPOSE:
  Maps a user's total stamp count onto a five-level grade. The grade
  is recomputed on every read and never persisted, so it can never
  drift out of sync with the underlying stamps.

RULE:
  level = min(stampCount / 3, 4)
*/
package engine

// Grade is a derived rank. Not persisted.
type Grade struct {
	Level      int    `json:"level"`
	Name       string `json:"name"`
	Color      string `json:"color"`
	Icon       string `json:"icon"`
	StampCount int    `json:"stamp_count"`
}

// GradeTable is the fixed five-entry level table, index = level.
type GradeTable [5]Grade

// DefaultGradeTable returns the standard grade ladder.
func DefaultGradeTable() GradeTable {
	return GradeTable{
		{Level: 0, Name: "여행 새싹", Color: "#9CCC65", Icon: "🌱"},
		{Level: 1, Name: "여행 초보", Color: "#42A5F5", Icon: "🎒"},
		{Level: 2, Name: "여행 중수", Color: "#AB47BC", Icon: "🗺️"},
		{Level: 3, Name: "여행 고수", Color: "#FFA726", Icon: "✈️"},
		{Level: 4, Name: "여행 마스터", Color: "#EF5350", Icon: "👑"},
	}
}

// GradeFor computes the grade for a stamp count. Pure function:
// three stamps per level, capped at level 4.
func (t GradeTable) GradeFor(stampCount int) Grade {
	level := stampCount / 3
	if level > 4 {
		level = 4
	}
	if level < 0 {
		level = 0
	}
	g := t[level]
	g.StampCount = stampCount
	return g
}
