package simulator

import "fmt"

// allocateProcess tries to place a waiting process in the current layout.
// A failure is recorded as an event and an error log entry and leaves both
// the store and the process untouched; the caller retries on a later tick.
func (s *Simulator) allocateProcess(p *Process) bool {
	now := s.currentTime
	technique := s.config.Technique

	s.emit(SimulationEvent{
		Time:        now,
		Type:        EventTypeAllocationAttempt,
		ProcessName: p.Name,
		Details:     fmt.Sprintf("Requesting %d KB using %s", p.Size, describePlacement(p, technique)),
	})

	var (
		hole    MemoryBlock
		address int
		ok      bool
	)
	if p.RequestedAddress != nil {
		address = *p.RequestedAddress
		hole, ok = s.memory.HoleContaining(address, p.Size)
	} else {
		hole, ok = SelectHole(s.memory.blocks, p.Size, technique, &s.lastFitIndex)
		address = hole.Start
	}
	if !ok {
		s.recordAllocationFailure(p, "No suitable hole")
		return false
	}

	block, err := s.memory.Allocate(hole.ID, address, p.Size, BlockOwner{
		ProcessID:   p.ID,
		ProcessName: p.Name,
		Color:       p.Color,
	})
	if err != nil {
		s.recordAllocationFailure(p, err.Error())
		return false
	}

	p.Status = StatusRunning
	p.StartAddress = intPtr(block.Start)
	p.AllocatedAt = intPtr(now)

	s.emit(SimulationEvent{
		Time:        now,
		Type:        EventTypeAllocationSuccess,
		ProcessName: p.Name,
		HoleID:      hole.ID,
		Details:     fmt.Sprintf("Allocated using %s", describePlacement(p, technique)),
	})
	s.addLog(LogTypeAllocation, fmt.Sprintf("Allocated %s", p.Name),
		fmt.Sprintf("%d KB at address %d using %s", p.Size, block.Start, describePlacement(p, technique)), p)

	return true
}

func (s *Simulator) recordAllocationFailure(p *Process, reason string) {
	s.emit(SimulationEvent{
		Time:        s.currentTime,
		Type:        EventTypeAllocationFailure,
		ProcessName: p.Name,
		Details:     reason,
	})
	s.addLog(LogTypeError, fmt.Sprintf("Allocation failed for %s", p.Name),
		fmt.Sprintf("%s for %d KB, will retry", reason, p.Size), p)
}

// deallocateProcess reclaims the process's block, coalesces neighbouring
// holes and marks the process completed. A completed process is left alone,
// so no duplicate events are emitted.
func (s *Simulator) deallocateProcess(p *Process) {
	if p.Status == StatusCompleted {
		return
	}
	freed, ok := s.memory.Free(p.ID)
	p.Status = StatusCompleted
	if !ok {
		return
	}

	s.emit(SimulationEvent{
		Time:        s.currentTime,
		Type:        EventTypeDeallocation,
		ProcessName: p.Name,
		Details:     fmt.Sprintf("Freed %d KB", freed.Size),
	})
	s.addLog(LogTypeDeallocation, fmt.Sprintf("Deallocated %s", p.Name),
		fmt.Sprintf("Freed %d KB at address %d", freed.Size, freed.Start), p)
}

func describePlacement(p *Process, technique Technique) string {
	if p.RequestedAddress != nil {
		return fmt.Sprintf("explicit address %d", *p.RequestedAddress)
	}
	return technique.String()
}
