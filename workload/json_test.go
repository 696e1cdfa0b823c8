package workload

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/miretskiy/fitsim/simulator"
)

const sampleWorkload = `{
	"totalMemory": 1000,
	"technique": "best-fit",
	"processes": [
		{"name": "web", "size": 200, "burstTime": 3, "arrivalTime": 0},
		{"name": "db", "size": 300, "arrivalTime": 2},
		{"name": "pinned", "size": 100, "burstTime": 1, "arrivalTime": 0, "address": 800}
	]
}`

func TestLoadJSON(t *testing.T) {
	w, err := LoadJSON(strings.NewReader(sampleWorkload))
	require.NoError(t, err)

	require.Equal(t, 1000, w.TotalMemory)
	require.NotNil(t, w.Technique)
	require.Equal(t, simulator.TechniqueBestFit, *w.Technique)
	require.Len(t, w.Processes, 3)
	require.Equal(t, 0, w.Processes[1].BurstTime)
	require.Equal(t, 800, *w.Processes[2].Address)
}

func TestLoadJSON_Rejects(t *testing.T) {
	for _, doc := range []string{
		`{"totalMemory": 10, "bogus": true}`,
		`{"totalMemory": -1}`,
		`{"technique": "paging"}`,
		`not json`,
	} {
		_, err := LoadJSON(strings.NewReader(doc))
		require.Error(t, err, doc)
	}
}

func TestWorkload_Apply(t *testing.T) {
	w, err := LoadJSON(strings.NewReader(sampleWorkload))
	require.NoError(t, err)

	sim, err := simulator.NewSimulator(simulator.DefaultConfig(), simulator.WithIDGenerator(simulator.NewSequentialIDGenerator()))
	require.NoError(t, err)
	require.NoError(t, w.Apply(sim))

	require.Equal(t, 1000, sim.TotalMemory())
	require.Equal(t, simulator.TechniqueBestFit, sim.Config().Technique)

	processes := sim.Processes()
	require.Len(t, processes, 3)
	require.Equal(t, sim.Config().DefaultBurstTime, processes[1].BurstTime)

	sim.RunUntilIdle(50)
	require.True(t, sim.IsIdle())
	require.NoError(t, sim.CheckInvariants())
}

func TestWorkload_ApplyReportsBadProcess(t *testing.T) {
	w := &Workload{Processes: []simulator.ProcessSpec{{Name: "", Size: 1}}}
	sim, err := simulator.NewSimulator(simulator.DefaultConfig())
	require.NoError(t, err)

	err = w.Apply(sim)
	require.ErrorIs(t, err, simulator.ErrInvalidProcess)
}

func TestWorkload_ApplyLeavesSimulatorUntouchedOnError(t *testing.T) {
	sim, err := simulator.NewSimulator(simulator.DefaultConfig(), simulator.WithIDGenerator(simulator.NewSequentialIDGenerator()))
	require.NoError(t, err)
	sim.LogEvent = nil
	_, err = sim.SubmitProcess(simulator.ProcessSpec{Name: "keep", Size: 100, BurstTime: 3})
	require.NoError(t, err)
	sim.Step()
	before := sim.Snapshot()

	address := 450
	for name, w := range map[string]*Workload{
		"second process invalid": {TotalMemory: 2048, Processes: []simulator.ProcessSpec{
			{Name: "A", Size: 10}, {Name: "B", Size: -1},
		}},
		"address past new memory": {TotalMemory: 500, Processes: []simulator.ProcessSpec{
			{Name: "A", Size: 10}, {Name: "B", Size: 100, Address: &address},
		}},
	} {
		t.Run(name, func(t *testing.T) {
			require.Error(t, w.Apply(sim))
			require.Equal(t, before, sim.Snapshot())
		})
	}

	var conflict *simulator.AddressConflictError
	w := &Workload{TotalMemory: 500, Processes: []simulator.ProcessSpec{{Name: "B", Size: 100, Address: &address}}}
	require.ErrorAs(t, w.Apply(sim), &conflict)
}
