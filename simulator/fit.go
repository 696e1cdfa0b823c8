package simulator

import "sort"

// SelectHole picks the hole that satisfies a request of the given size.
//
// Only holes with Size >= size are candidates. Candidates are taken in address
// order, so sort.SliceStable resolves best-fit and worst-fit ties toward the
// lowest address. For next-fit, cursor indexes the eligible list (not the full
// block list): the candidate at cursor%len(eligible) is chosen and the cursor
// moves one past it. cursor is untouched for the other techniques and when
// nothing fits.
func SelectHole(blocks []MemoryBlock, size int, technique Technique, cursor *int) (MemoryBlock, bool) {
	eligible := make([]MemoryBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.IsHole && b.Size >= size {
			eligible = append(eligible, b)
		}
	}
	if len(eligible) == 0 {
		return MemoryBlock{}, false
	}

	switch technique {
	case TechniqueBestFit:
		sort.SliceStable(eligible, func(i, j int) bool { return eligible[i].Size < eligible[j].Size })
		return eligible[0], true
	case TechniqueWorstFit:
		sort.SliceStable(eligible, func(i, j int) bool { return eligible[i].Size > eligible[j].Size })
		return eligible[0], true
	case TechniqueNextFit:
		idx := 0
		if cursor != nil {
			idx = *cursor % len(eligible)
			if idx < 0 {
				idx += len(eligible)
			}
			*cursor = idx + 1
		}
		return eligible[idx], true
	default:
		return eligible[0], true
	}
}
