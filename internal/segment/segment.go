package segment

import (
	"fmt"
	"sort"
)

// TimeRange is a span of source video time in seconds.
type TimeRange struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
}

// Valid reports whether 0 <= Start < End.
func (r TimeRange) Valid() bool {
	return r.Start >= 0 && r.Start < r.End
}

// Duration returns End - Start.
func (r TimeRange) Duration() float64 {
	return r.End - r.Start
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%.3f, %.3f)", r.Start, r.End)
}

// InsertAndMerge returns a new merged set containing the union of existing and addition.
func InsertAndMerge(existing []TimeRange, addition TimeRange) []TimeRange {
	all := make([]TimeRange, 0, len(existing)+1)
	all = append(all, existing...)
	all = append(all, addition)
	return Merge(all)
}

// Merge sorts ranges by start and collapses overlapping or touching ranges in a
// single sweep. Ranges without positive duration are dropped. The input is not modified.
func Merge(ranges []TimeRange) []TimeRange {
	sorted := make([]TimeRange, 0, len(ranges))
	for _, r := range ranges {
		if r.End > r.Start {
			sorted = append(sorted, r)
		}
	}
	if len(sorted) == 0 {
		return []TimeRange{}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	merged := make([]TimeRange, 0, len(sorted))
	current := sorted[0]
	for _, next := range sorted[1:] {
		if next.Start <= current.End {
			if next.End > current.End {
				current.End = next.End
			}
			continue
		}
		merged = append(merged, current)
		current = next
	}
	merged = append(merged, current)
	return merged
}

// DeriveKept returns the ranges of [0, totalDuration] not covered by any deleted
// range. An empty result means nothing is left to keep.
func DeriveKept(totalDuration float64, deleted []TimeRange) []TimeRange {
	kept := []TimeRange{}
	if totalDuration <= 0 {
		return kept
	}

	sorted := make([]TimeRange, len(deleted))
	copy(sorted, deleted)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	cursor := 0.0
	for _, d := range sorted {
		start := d.Start
		if start > totalDuration {
			start = totalDuration
		}
		if cursor < start {
			kept = append(kept, TimeRange{Start: cursor, End: start})
		}
		if d.End > cursor {
			cursor = d.End
		}
	}
	if cursor < totalDuration {
		kept = append(kept, TimeRange{Start: cursor, End: totalDuration})
	}
	return kept
}

// Contains reports whether t falls inside [start, end) of any range.
func Contains(ranges []TimeRange, t float64) bool {
	for _, r := range ranges {
		if t >= r.Start && t < r.End {
			return true
		}
	}
	return false
}

// TotalDuration sums the durations of the given ranges.
func TotalDuration(ranges []TimeRange) float64 {
	var total float64
	for _, r := range ranges {
		total += r.Duration()
	}
	return total
}

// Clip limits every range to [0, limit], dropping those left empty.
func Clip(ranges []TimeRange, limit float64) []TimeRange {
	out := make([]TimeRange, 0, len(ranges))
	for _, r := range ranges {
		if r.Start < 0 {
			r.Start = 0
		}
		if r.End > limit {
			r.End = limit
		}
		if r.End > r.Start {
			out = append(out, r)
		}
	}
	return out
}
