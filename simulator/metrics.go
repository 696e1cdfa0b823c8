package simulator

// Stats is a point-in-time summary of memory use. It holds no state of its
// own and is recomputed from the block list and process set on demand.
type Stats struct {
	TotalMemory           int     `json:"totalMemory"`
	UsedMemory            int     `json:"usedMemory"`
	FreeMemory            int     `json:"freeMemory"`
	Utilization           float64 `json:"utilization"`           // Percent of TotalMemory in use (0-100)
	InternalFragmentation int     `json:"internalFragmentation"` // Always 0: blocks are sized exactly to their process
	ExternalFragmentation int     `json:"externalFragmentation"` // Total free memory when it is split across more than one hole
	NumberOfHoles         int     `json:"numberOfHoles"`
	NumberOfProcesses     int     `json:"numberOfProcesses"` // Running processes
	LargestHole           int     `json:"largestHole"`
}

// ComputeStats derives Stats from a block list and process set
func ComputeStats(totalMemory int, blocks []MemoryBlock, processes []Process) Stats {
	stats := Stats{TotalMemory: totalMemory}

	freeTotal := 0
	for _, b := range blocks {
		if b.IsHole {
			stats.NumberOfHoles++
			freeTotal += b.Size
			if b.Size > stats.LargestHole {
				stats.LargestHole = b.Size
			}
		} else {
			stats.UsedMemory += b.Size
		}
	}
	stats.FreeMemory = totalMemory - stats.UsedMemory
	if totalMemory > 0 {
		stats.Utilization = float64(stats.UsedMemory) / float64(totalMemory) * 100
	}
	if stats.NumberOfHoles > 1 {
		stats.ExternalFragmentation = freeTotal
	}

	for _, p := range processes {
		if p.Status == StatusRunning {
			stats.NumberOfProcesses++
		}
	}

	return stats
}
