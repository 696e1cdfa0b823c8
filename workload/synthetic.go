package workload

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/miretskiy/fitsim/simulator"
)

// DistributionType selects how a synthetic value is drawn from its range
type DistributionType int

const (
	DistUniform DistributionType = iota
	DistExponential
	DistGeometric
	DistFixed
)

func (dt DistributionType) String() string {
	switch dt {
	case DistUniform:
		return "uniform"
	case DistExponential:
		return "exponential"
	case DistGeometric:
		return "geometric"
	case DistFixed:
		return "fixed"
	default:
		return fmt.Sprintf("unknown(%d)", int(dt))
	}
}

// ParseDistributionType parses a distribution name
func ParseDistributionType(s string) (DistributionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uniform":
		return DistUniform, nil
	case "exponential":
		return DistExponential, nil
	case "geometric":
		return DistGeometric, nil
	case "fixed":
		return DistFixed, nil
	default:
		return DistUniform, fmt.Errorf("invalid distribution %q (must be 'uniform', 'exponential', 'geometric', or 'fixed')", s)
	}
}

func (dt DistributionType) MarshalJSON() ([]byte, error) {
	return json.Marshal(dt.String())
}

func (dt *DistributionType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDistributionType(s)
	if err != nil {
		return err
	}
	*dt = parsed
	return nil
}

// Distribution draws an integer in [min, max]
type Distribution interface {
	Sample(rng *rand.Rand, min, max int) int
}

// UniformDistribution samples every value in the range with equal weight
type UniformDistribution struct{}

func (UniformDistribution) Sample(rng *rand.Rand, min, max int) int {
	if min >= max {
		return min
	}
	return min + rng.Intn(max-min+1)
}

// ExponentialDistribution favors values near min. Higher Lambda skews harder.
type ExponentialDistribution struct {
	Lambda float64
}

func (d ExponentialDistribution) Sample(rng *rand.Rand, min, max int) int {
	if min >= max {
		return min
	}
	lambda := d.Lambda
	if lambda <= 0 {
		lambda = 0.5
	}

	u := rng.Float64()
	if u == 0 {
		u = 1e-10
	}
	x := -math.Log(u) / lambda

	// ~95% of draws fall below 6/lambda; clamp the tail to max
	normalized := math.Min(x/(6.0/lambda), 1.0)
	return min + int(normalized*float64(max-min))
}

// GeometricDistribution counts failures before the first success with
// probability P, clamped to the range
type GeometricDistribution struct {
	P float64
}

func (d GeometricDistribution) Sample(rng *rand.Rand, min, max int) int {
	if min >= max {
		return min
	}
	if d.P <= 0 || d.P >= 1 {
		return min
	}

	u := rng.Float64()
	if u >= 1.0 {
		u = 0.999999
	}
	failures := int(math.Log(1-u) / math.Log(1-d.P))
	if failures < 0 {
		failures = 0
	}
	if failures > max-min {
		failures = max - min
	}
	return min + failures
}

// FixedDistribution always returns the value Percentage of the way from min
// to max
type FixedDistribution struct {
	Percentage float64
}

func (d FixedDistribution) Sample(_ *rand.Rand, min, max int) int {
	if min >= max {
		return min
	}
	p := math.Max(0, math.Min(1, d.Percentage))
	return min + int(p*float64(max-min))
}

// NewDistribution returns the distribution for distType with default shape
// parameters
func NewDistribution(distType DistributionType) Distribution {
	switch distType {
	case DistExponential:
		return ExponentialDistribution{Lambda: 0.5}
	case DistGeometric:
		return GeometricDistribution{P: 0.3}
	case DistFixed:
		return FixedDistribution{Percentage: 0.5}
	default:
		return UniformDistribution{}
	}
}

// SyntheticConfig describes a generated workload
type SyntheticConfig struct {
	Processes   int                  `json:"processes"`
	TotalMemory int                  `json:"totalMemory"`
	Technique   *simulator.Technique `json:"technique,omitempty"`

	MinSize  int              `json:"minSize"`
	MaxSize  int              `json:"maxSize"`
	SizeDist DistributionType `json:"sizeDistribution"`

	MinBurst  int              `json:"minBurst"`
	MaxBurst  int              `json:"maxBurst"`
	BurstDist DistributionType `json:"burstDistribution"`

	// Gap in ticks between consecutive arrivals
	MinInterarrival  int              `json:"minInterarrival"`
	MaxInterarrival  int              `json:"maxInterarrival"`
	InterarrivalDist DistributionType `json:"interarrivalDistribution"`
}

// DefaultSyntheticConfig returns a small mixed workload over 1024 KB
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Processes:        10,
		TotalMemory:      1024,
		MinSize:          32,
		MaxSize:          256,
		SizeDist:         DistUniform,
		MinBurst:         2,
		MaxBurst:         10,
		BurstDist:        DistGeometric,
		MinInterarrival:  0,
		MaxInterarrival:  3,
		InterarrivalDist: DistExponential,
	}
}

// Validate checks the config can produce a workload the simulator accepts
func (c SyntheticConfig) Validate() error {
	if c.Processes <= 0 {
		return fmt.Errorf("processes must be > 0, got %d", c.Processes)
	}
	if c.TotalMemory <= 0 {
		return fmt.Errorf("totalMemory must be > 0, got %d", c.TotalMemory)
	}
	if c.MinSize <= 0 || c.MaxSize < c.MinSize {
		return fmt.Errorf("size range [%d, %d] is invalid", c.MinSize, c.MaxSize)
	}
	if c.MaxSize > c.TotalMemory {
		return fmt.Errorf("maxSize %d exceeds totalMemory %d", c.MaxSize, c.TotalMemory)
	}
	if c.MinBurst <= 0 || c.MaxBurst < c.MinBurst {
		return fmt.Errorf("burst range [%d, %d] is invalid", c.MinBurst, c.MaxBurst)
	}
	if c.MinInterarrival < 0 || c.MaxInterarrival < c.MinInterarrival {
		return fmt.Errorf("interarrival range [%d, %d] is invalid", c.MinInterarrival, c.MaxInterarrival)
	}
	return nil
}

// Synthetic draws a workload from c. The same rng seed yields the same
// workload.
func Synthetic(rng *rand.Rand, c SyntheticConfig) (*Workload, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	sizes := NewDistribution(c.SizeDist)
	bursts := NewDistribution(c.BurstDist)
	gaps := NewDistribution(c.InterarrivalDist)

	w := &Workload{
		TotalMemory: c.TotalMemory,
		Technique:   c.Technique,
		Processes:   make([]simulator.ProcessSpec, 0, c.Processes),
	}
	arrival := 0
	for i := 0; i < c.Processes; i++ {
		if i > 0 {
			arrival += gaps.Sample(rng, c.MinInterarrival, c.MaxInterarrival)
		}
		w.Processes = append(w.Processes, simulator.ProcessSpec{
			Name:        fmt.Sprintf("P%d", i+1),
			Size:        sizes.Sample(rng, c.MinSize, c.MaxSize),
			BurstTime:   bursts.Sample(rng, c.MinBurst, c.MaxBurst),
			ArrivalTime: arrival,
		})
	}
	return w, nil
}
