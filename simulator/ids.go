package simulator

import (
	"strconv"

	"github.com/rs/xid"
)

// IDGenerator can generate IDs for blocks, processes and log entries
type IDGenerator interface {
	// Generate an ID
	Generate() string
}

// NewSequentialIDGenerator returns a generator producing "1", "2", ...
// Each simulator owns its generator, so tests get stable ids.
func NewSequentialIDGenerator() IDGenerator {
	return &sequentialIDGenerator{}
}

// NewXIDGenerator returns a generator of short globally unique ids.
func NewXIDGenerator() IDGenerator {
	return xidGenerator{}
}

type sequentialIDGenerator struct {
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() string {
	g.nextID++
	return strconv.FormatUint(g.nextID, 10)
}

type xidGenerator struct{}

// Generate keeps the last seven characters of the xid: 31 bits made of the
// 24-bit per-process counter and 7 bits of the pid. Ids are unique within one
// process until the counter wraps, after about 16M ids.
func (xidGenerator) Generate() string {
	s := xid.New().String()
	return s[len(s)-7:]
}
