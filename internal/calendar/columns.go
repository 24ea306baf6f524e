package calendar

import (
	"sort"

	"tripcal/internal/model"
)

type activeSegment struct {
	end    int
	column int
}

// LayoutColumns assigns each segment of one day a column so that segments
// with overlapping [start, end) never share a column.
//
// segs must be sorted by start minute (ProjectDay output is). Segments that
// are transitively connected by overlaps form a group; every member of a
// group gets the group's column count, so overlapping segments render as
// equal-width slots and isolated ones take the full width.
func LayoutColumns(segs []model.Segment) []model.LayoutSegment {
	out := make([]model.LayoutSegment, len(segs))
	if len(segs) == 0 {
		return out
	}

	var (
		active     []activeSegment
		free       []int // sorted ascending
		nextColumn int
		group      = -1
		groupOf    = make([]int, len(segs))
		groupWidth []int
	)

	for i, seg := range segs {
		// Release everything that ended at or before this start.
		kept := active[:0]
		for _, a := range active {
			if a.end <= seg.StartMinutes {
				free = insertSorted(free, a.column)
				continue
			}
			kept = append(kept, a)
		}
		active = kept

		if len(active) == 0 {
			group++
			groupWidth = append(groupWidth, 0)
			free = free[:0]
			nextColumn = 0
		}

		var col int
		if len(free) > 0 {
			col = free[0]
			free = free[1:]
		} else {
			col = nextColumn
			nextColumn++
		}

		active = append(active, activeSegment{end: seg.EndMinutes, column: col})
		groupOf[i] = group
		if col+1 > groupWidth[group] {
			groupWidth[group] = col + 1
		}
		out[i] = model.LayoutSegment{Segment: seg, ColumnIndex: col}
	}

	for i := range out {
		out[i].ColumnCount = groupWidth[groupOf[i]]
	}
	return out
}

func insertSorted(s []int, v int) []int {
	i := sort.SearchInts(s, v)
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
