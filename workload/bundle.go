// Package workload loads process workloads for the simulator: spreadsheet
// bundles (Processes, Memory and Holes sheets), random demo templates and the
// JSON workloads used by the headless runner.
package workload

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/miretskiy/fitsim/simulator"
)

// ProcessData is one row of the Processes sheet
type ProcessData struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// HoleData is one row of the Holes sheet
type HoleData struct {
	ID    string `json:"id"`
	Start int    `json:"start"`
	Size  int    `json:"size"`
}

// Bundle is a parsed and validated workbook
type Bundle struct {
	Processes   []ProcessData `json:"processes"`
	TotalMemory int           `json:"totalMemory"`
	Holes       []HoleData    `json:"holes"`
}

// ToImport converts the bundle into a simulator import batch. Holes are
// descriptive only: the simulator always starts from one hole spanning memory.
func (b *Bundle) ToImport() simulator.ImportBatch {
	batch := simulator.ImportBatch{
		TotalMemory: b.TotalMemory,
		Processes:   make([]simulator.ImportedProcess, 0, len(b.Processes)),
	}
	for _, p := range b.Processes {
		batch.Processes = append(batch.Processes, simulator.ImportedProcess{Name: p.Name, Size: p.Size})
	}
	return batch
}

// ParseError reports a workbook that cannot be imported
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string {
	return e.Message
}

func parseErrorf(format string, args ...interface{}) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...)}
}

// Workload is the JSON form consumed by the headless runner. Unlike a
// Bundle it carries full process descriptors.
type Workload struct {
	TotalMemory int                     `json:"totalMemory"`
	Technique   *simulator.Technique    `json:"technique,omitempty"`
	Processes   []simulator.ProcessSpec `json:"processes"`
}

// LoadJSON decodes a workload. Unknown fields are rejected.
func LoadJSON(r io.Reader) (*Workload, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var w Workload
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("failed to decode workload: %w", err)
	}
	if w.TotalMemory < 0 {
		return nil, fmt.Errorf("totalMemory must be >= 0, got %d", w.TotalMemory)
	}
	return &w, nil
}

// LoadJSONFile reads a workload from disk
func LoadJSONFile(path string) (*Workload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadJSON(f)
}

// Apply resets sim to the workload's memory size (when set) and technique,
// then submits every process. A zero burst time falls back to the
// simulator's default. Every process is checked first; on error sim is left
// untouched.
func (w *Workload) Apply(sim *simulator.Simulator) error {
	if err := w.validate(sim); err != nil {
		return err
	}

	if w.TotalMemory > 0 {
		if err := sim.SetTotalMemory(w.TotalMemory); err != nil {
			return err
		}
	} else {
		sim.Reset()
	}
	if w.Technique != nil {
		if err := sim.SetTechnique(*w.Technique); err != nil {
			return err
		}
	}

	defaultBurst := sim.Config().DefaultBurstTime
	for i, spec := range w.Processes {
		if spec.BurstTime == 0 {
			spec.BurstTime = defaultBurst
		}
		if _, err := sim.SubmitProcess(spec); err != nil {
			return fmt.Errorf("process %d (%s): %w", i+1, spec.Name, err)
		}
	}
	return nil
}

// validate checks each process against the memory the simulator will have
// after Apply resets it
func (w *Workload) validate(sim *simulator.Simulator) error {
	if w.TotalMemory < 0 {
		return fmt.Errorf("totalMemory must be >= 0, got %d", w.TotalMemory)
	}
	total := sim.TotalMemory()
	if w.TotalMemory > 0 {
		total = w.TotalMemory
	}

	defaultBurst := sim.Config().DefaultBurstTime
	for i, spec := range w.Processes {
		if spec.BurstTime == 0 {
			spec.BurstTime = defaultBurst
		}
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("process %d (%s): %w", i+1, spec.Name, err)
		}
		if spec.Address != nil && *spec.Address+spec.Size > total {
			return fmt.Errorf("process %d (%s): %w", i+1, spec.Name,
				&simulator.AddressConflictError{Address: *spec.Address, Size: spec.Size})
		}
	}
	return nil
}
