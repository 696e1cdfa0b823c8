package simulator

import (
	"encoding/json"
	"fmt"
)

// Technique selects which hole satisfies an allocation request
type Technique int

const (
	TechniqueFirstFit Technique = iota // Lowest address among holes that are large enough
	TechniqueBestFit                   // Smallest hole that is large enough
	TechniqueWorstFit                  // Largest hole
	TechniqueNextFit                   // Rotating cursor over eligible holes
)

// Techniques lists every technique in display order
var Techniques = []Technique{
	TechniqueFirstFit,
	TechniqueBestFit,
	TechniqueWorstFit,
	TechniqueNextFit,
}

// String returns the string representation of Technique
func (t Technique) String() string {
	switch t {
	case TechniqueFirstFit:
		return "first-fit"
	case TechniqueBestFit:
		return "best-fit"
	case TechniqueWorstFit:
		return "worst-fit"
	case TechniqueNextFit:
		return "next-fit"
	default:
		return "unknown"
	}
}

// ParseTechnique parses a string into Technique.
// Paging and segmentation are recognised names but have no allocation logic behind them.
func ParseTechnique(s string) (Technique, error) {
	switch s {
	case "first-fit":
		return TechniqueFirstFit, nil
	case "best-fit":
		return TechniqueBestFit, nil
	case "worst-fit":
		return TechniqueWorstFit, nil
	case "next-fit":
		return TechniqueNextFit, nil
	case "paging", "segmentation":
		return TechniqueFirstFit, fmt.Errorf("technique %s is not supported by contiguous allocation", s)
	default:
		return TechniqueFirstFit, fmt.Errorf("invalid technique: %s (must be 'first-fit', 'best-fit', 'worst-fit' or 'next-fit')", s)
	}
}

// MarshalJSON implements json.Marshaler for Technique
func (t Technique) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler for Technique
func (t *Technique) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTechnique(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// SimConfig holds all simulation parameters
type SimConfig struct {
	TotalMemory      int       `json:"totalMemory"`      // Size of the address space (KB)
	SpeedMs          int       `json:"speedMs"`          // Wall-clock milliseconds per tick (pacing only, used by cmd/server)
	Technique        Technique `json:"technique"`        // Active fit technique
	DefaultBurstTime int       `json:"defaultBurstTime"` // Burst time given to bulk-imported processes
	LogCapacity      int       `json:"logCapacity"`      // Number of log entries retained (newest first)
}

// DefaultConfig returns the defaults the visualizer starts with
func DefaultConfig() SimConfig {
	return SimConfig{
		TotalMemory:      1024,              // 1 MB address space
		SpeedMs:          1000,              // 1 tick per second
		Technique:        TechniqueFirstFit, // First fit
		DefaultBurstTime: 5,                 // 5 ticks of residency for imported processes
		LogCapacity:      100,               // Most recent 100 log entries
	}
}

// Validate checks if configuration values are reasonable
func (c *SimConfig) Validate() error {
	if c.TotalMemory <= 0 {
		return ErrInvalidConfig("totalMemory must be > 0")
	}
	if c.SpeedMs <= 0 {
		return ErrInvalidConfig("speedMs must be > 0")
	}
	if c.DefaultBurstTime <= 0 {
		return ErrInvalidConfig("defaultBurstTime must be > 0")
	}
	if c.LogCapacity <= 0 {
		return ErrInvalidConfig("logCapacity must be > 0")
	}
	switch c.Technique {
	case TechniqueFirstFit, TechniqueBestFit, TechniqueWorstFit, TechniqueNextFit:
	default:
		return ErrInvalidConfig(fmt.Sprintf("unknown technique %d", int(c.Technique)))
	}
	return nil
}
