package simulator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ProcessStatus is the lifecycle state of a process. It only moves forward:
// waiting -> running -> completed (or waiting -> completed on termination).
type ProcessStatus int

const (
	StatusWaiting ProcessStatus = iota
	StatusRunning
	StatusCompleted
)

func (ps ProcessStatus) String() string {
	switch ps {
	case StatusWaiting:
		return "waiting"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// ParseProcessStatus parses a string into ProcessStatus
func ParseProcessStatus(s string) (ProcessStatus, error) {
	switch s {
	case "waiting":
		return StatusWaiting, nil
	case "running":
		return StatusRunning, nil
	case "completed":
		return StatusCompleted, nil
	default:
		return StatusWaiting, fmt.Errorf("invalid process status: %s", s)
	}
}

// MarshalJSON implements json.Marshaler for ProcessStatus
func (ps ProcessStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(ps.String())
}

// UnmarshalJSON implements json.Unmarshaler for ProcessStatus
func (ps *ProcessStatus) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseProcessStatus(s)
	if err != nil {
		return err
	}
	*ps = parsed
	return nil
}

// ProcessColors is the rotating palette handed out to new processes
var ProcessColors = []string{
	"hsl(185, 100%, 50%)", // cyan
	"hsl(270, 80%, 60%)",  // purple
	"hsl(320, 100%, 60%)", // pink
	"hsl(150, 100%, 50%)", // green
	"hsl(25, 100%, 55%)",  // orange
	"hsl(210, 100%, 60%)", // blue
	"hsl(45, 100%, 50%)",  // yellow
	"hsl(0, 85%, 60%)",    // red
}

// ProcessSpec is what a caller submits. Address is optional: when set the
// process is placed at exactly that address instead of going through the fit
// technique.
type ProcessSpec struct {
	Name        string `json:"name"`
	Size        int    `json:"size"`
	BurstTime   int    `json:"burstTime"`
	ArrivalTime int    `json:"arrivalTime"`
	Address     *int   `json:"address,omitempty"`
}

// Validate checks the descriptor before it is queued
func (ps ProcessSpec) Validate() error {
	if strings.TrimSpace(ps.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidProcess)
	}
	if ps.Size <= 0 {
		return fmt.Errorf("%w: size must be > 0, got %d", ErrInvalidProcess, ps.Size)
	}
	if ps.BurstTime <= 0 {
		return fmt.Errorf("%w: burstTime must be > 0, got %d", ErrInvalidProcess, ps.BurstTime)
	}
	if ps.ArrivalTime < 0 {
		return fmt.Errorf("%w: arrivalTime must be >= 0, got %d", ErrInvalidProcess, ps.ArrivalTime)
	}
	if ps.Address != nil && *ps.Address < 0 {
		return fmt.Errorf("%w: address must be >= 0, got %d", ErrInvalidProcess, *ps.Address)
	}
	return nil
}

// Process is a simulated workload requesting memory
type Process struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Size             int           `json:"size"`
	BurstTime        int           `json:"burstTime"`
	RemainingTime    int           `json:"remainingTime"`
	ArrivalTime      int           `json:"arrivalTime"`
	Color            string        `json:"color"`
	Status           ProcessStatus `json:"status"`
	StartAddress     *int          `json:"startAddress,omitempty"`     // Set once, when allocation succeeds
	AllocatedAt      *int          `json:"allocatedAt,omitempty"`      // Tick of successful allocation
	RequestedAddress *int          `json:"requestedAddress,omitempty"` // Explicit placement, if any

	arrived bool // PROCESS_ARRIVAL already emitted
}

// clone returns a copy that shares no pointers with p
func (p *Process) clone() Process {
	c := *p
	c.StartAddress = copyInt(p.StartAddress)
	c.AllocatedAt = copyInt(p.AllocatedAt)
	c.RequestedAddress = copyInt(p.RequestedAddress)
	return c
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func intPtr(v int) *int {
	return &v
}
