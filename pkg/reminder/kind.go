package reminder

import (
	"fmt"
	"sort"
)

type Kind string

const (
	KindMinus15 Kind = "minus15"
	KindMinus5  Kind = "minus5"
	KindAtStart Kind = "atStart"
)

var DefaultOffsets = []int{15, 5, 0}

// KindForOffset names the alert for an offset in minutes before class start
func KindForOffset(offset int) Kind {
	if offset == 0 {
		return KindAtStart
	}

	return Kind(fmt.Sprintf("minus%d", offset))
}

// normaliseOffsets drops negative and duplicate offsets and orders them furthest first
func normaliseOffsets(offsets []int) []int {
	seen := map[int]bool{}
	normalised := []int{}

	for _, offset := range offsets {
		if offset < 0 || seen[offset] {
			continue
		}
		seen[offset] = true
		normalised = append(normalised, offset)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(normalised)))

	return normalised
}
