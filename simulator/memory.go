package simulator

import (
	"fmt"
	"sort"
)

// MemoryBlock is a contiguous region of the address space, either a hole or
// owned by exactly one process
type MemoryBlock struct {
	ID          string `json:"id"`
	Start       int    `json:"start"`
	Size        int    `json:"size"`
	IsHole      bool   `json:"isHole"`
	ProcessID   string `json:"processId,omitempty"`   // Empty for holes
	ProcessName string `json:"processName,omitempty"` // Empty for holes
	Color       string `json:"color,omitempty"`       // Empty for holes
}

// End returns the first address past the block
func (b MemoryBlock) End() int {
	return b.Start + b.Size
}

// Contains reports whether [address, address+size) lies inside the block
func (b MemoryBlock) Contains(address, size int) bool {
	return address >= b.Start && address+size <= b.End()
}

// Hole is the read-only view of a free block. End is inclusive.
type Hole struct {
	ID    string `json:"id"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Size  int    `json:"size"`
}

// BlockOwner identifies the process an allocated block belongs to
type BlockOwner struct {
	ProcessID   string
	ProcessName string
	Color       string
}

// MemoryStore is the ordered partition of [0, total) into holes and
// allocated blocks. Blocks are kept sorted by Start.
type MemoryStore struct {
	total  int
	blocks []MemoryBlock
	ids    IDGenerator
}

// NewMemoryStore creates a store holding one hole that spans all of memory
func NewMemoryStore(total int, ids IDGenerator) *MemoryStore {
	m := &MemoryStore{ids: ids}
	m.Reset(total)
	return m
}

// Reset replaces every block with a single hole spanning [0, total)
func (m *MemoryStore) Reset(total int) {
	m.total = total
	m.blocks = []MemoryBlock{{
		ID:     m.ids.Generate(),
		Start:  0,
		Size:   total,
		IsHole: true,
	}}
}

// Total returns the size of the address space
func (m *MemoryStore) Total() int {
	return m.total
}

// Blocks returns a copy of the block list in address order
func (m *MemoryStore) Blocks() []MemoryBlock {
	blocks := make([]MemoryBlock, len(m.blocks))
	copy(blocks, m.blocks)
	return blocks
}

// Holes returns the free blocks in address order
func (m *MemoryStore) Holes() []Hole {
	holes := make([]Hole, 0)
	for _, b := range m.blocks {
		if b.IsHole {
			holes = append(holes, Hole{
				ID:    b.ID,
				Start: b.Start,
				End:   b.End() - 1,
				Size:  b.Size,
			})
		}
	}
	return holes
}

// HoleContaining returns the hole that fully contains [address, address+size)
func (m *MemoryStore) HoleContaining(address, size int) (MemoryBlock, bool) {
	if address < 0 || size <= 0 {
		return MemoryBlock{}, false
	}
	for _, b := range m.blocks {
		if b.IsHole && b.Contains(address, size) {
			return b, true
		}
	}
	return MemoryBlock{}, false
}

// Allocate carves [address, address+size) out of the hole identified by
// blockID. The hole is replaced by up to three blocks: a leading hole, the
// allocated block and a trailing hole. Empty leftovers are never emitted.
// On error the store is left unchanged.
func (m *MemoryStore) Allocate(blockID string, address, size int, owner BlockOwner) (MemoryBlock, error) {
	idx := m.indexOf(blockID)
	if idx < 0 {
		return MemoryBlock{}, fmt.Errorf("block %s not found", blockID)
	}
	target := m.blocks[idx]
	if !target.IsHole {
		return MemoryBlock{}, fmt.Errorf("block %s is not a hole", blockID)
	}
	if size <= 0 {
		return MemoryBlock{}, fmt.Errorf("allocation size must be > 0, got %d", size)
	}
	if !target.Contains(address, size) {
		return MemoryBlock{}, &AddressConflictError{Address: address, Size: size}
	}

	replacement := make([]MemoryBlock, 0, 3)
	if address > target.Start {
		replacement = append(replacement, MemoryBlock{
			ID:     m.ids.Generate(),
			Start:  target.Start,
			Size:   address - target.Start,
			IsHole: true,
		})
	}
	allocated := MemoryBlock{
		ID:          m.ids.Generate(),
		Start:       address,
		Size:        size,
		IsHole:      false,
		ProcessID:   owner.ProcessID,
		ProcessName: owner.ProcessName,
		Color:       owner.Color,
	}
	replacement = append(replacement, allocated)
	if end := address + size; end < target.End() {
		replacement = append(replacement, MemoryBlock{
			ID:     m.ids.Generate(),
			Start:  end,
			Size:   target.End() - end,
			IsHole: true,
		})
	}

	next := make([]MemoryBlock, 0, len(m.blocks)+2)
	next = append(next, m.blocks[:idx]...)
	next = append(next, replacement...)
	next = append(next, m.blocks[idx+1:]...)
	sort.SliceStable(next, func(i, j int) bool { return next[i].Start < next[j].Start })
	m.blocks = next

	return allocated, nil
}

// Free turns every block owned by processID back into a hole and then merges
// runs of adjacent holes in a single left-to-right pass. It returns the block
// as it was before being freed. Freeing an unknown process is a no-op.
func (m *MemoryStore) Free(processID string) (MemoryBlock, bool) {
	var freed MemoryBlock
	found := false
	for i := range m.blocks {
		b := &m.blocks[i]
		if b.IsHole || b.ProcessID != processID {
			continue
		}
		if !found {
			freed = *b
			found = true
		}
		b.IsHole = true
		b.ProcessID = ""
		b.ProcessName = ""
		b.Color = ""
	}
	if !found {
		return MemoryBlock{}, false
	}

	merged := make([]MemoryBlock, 0, len(m.blocks))
	for _, b := range m.blocks {
		if n := len(merged); n > 0 && merged[n-1].IsHole && b.IsHole {
			merged[n-1].Size += b.Size
			continue
		}
		merged = append(merged, b)
	}
	m.blocks = merged

	return freed, true
}

// CheckInvariants verifies that the blocks exactly partition [0, total), that
// owner fields are set only on allocated blocks and that no two holes touch.
func (m *MemoryStore) CheckInvariants() error {
	if len(m.blocks) == 0 {
		return fmt.Errorf("block list is empty")
	}
	expectedStart := 0
	for i, b := range m.blocks {
		if b.Start != expectedStart {
			return fmt.Errorf("block %d (%s) starts at %d, expected %d", i, b.ID, b.Start, expectedStart)
		}
		if b.Size <= 0 {
			return fmt.Errorf("block %d (%s) has non-positive size %d", i, b.ID, b.Size)
		}
		if b.IsHole && (b.ProcessID != "" || b.ProcessName != "" || b.Color != "") {
			return fmt.Errorf("hole %s carries process fields", b.ID)
		}
		if !b.IsHole && b.ProcessID == "" {
			return fmt.Errorf("allocated block %s has no process id", b.ID)
		}
		if i > 0 && b.IsHole && m.blocks[i-1].IsHole {
			return fmt.Errorf("holes %s and %s are adjacent", m.blocks[i-1].ID, b.ID)
		}
		expectedStart = b.End()
	}
	if expectedStart != m.total {
		return fmt.Errorf("blocks end at %d, expected %d", expectedStart, m.total)
	}
	return nil
}

func (m *MemoryStore) indexOf(blockID string) int {
	for i, b := range m.blocks {
		if b.ID == blockID {
			return i
		}
	}
	return -1
}
