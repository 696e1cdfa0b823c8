package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testWorkload = `{
	"totalMemory": 500,
	"processes": [
		{"name": "A", "size": 200, "burstTime": 2},
		{"name": "B", "size": 250, "burstTime": 3},
		{"name": "C", "size": 300, "burstTime": 1, "arrivalTime": 1}
	]
}`

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestRun_JSONWorkloadUntilIdle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workload.json")
	require.NoError(t, os.WriteFile(path, []byte(testWorkload), 0644))
	output := filepath.Join(dir, "result.json")

	execute(t, "run", path, "--technique", "best-fit", "--ticks", "0", "--output", output, "--record", "")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var result runResult
	require.NoError(t, json.Unmarshal(data, &result))

	require.True(t, result.Idle)
	require.Equal(t, "best-fit", result.Technique)
	require.Equal(t, 500, result.Snapshot.TotalMemory)
	require.Len(t, result.Snapshot.Processes, 3)
	require.Equal(t, 0, result.Snapshot.Stats.UsedMemory)
	require.Greater(t, result.TicksRun, 3, "C must wait for A and B")
}

func TestRun_FixedTicks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workload.json")
	require.NoError(t, os.WriteFile(path, []byte(testWorkload), 0644))
	output := filepath.Join(dir, "result.json")

	execute(t, "run", path, "--technique", "", "--ticks", "1", "--output", output, "--record", "")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var result runResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Equal(t, 1, result.TicksRun)
	require.False(t, result.Idle)
	require.Equal(t, 450, result.Snapshot.Stats.UsedMemory)
}

func TestTemplateRunAndHistory(t *testing.T) {
	dir := t.TempDir()
	workbook := filepath.Join(dir, "demo.xlsx")
	execute(t, "template", "--output", workbook, "--seed", "11")

	record := filepath.Join(dir, "rec")
	output := filepath.Join(dir, "result.json")
	execute(t, "run", workbook, "--technique", "", "--ticks", "0", "--output", output, "--record", record)

	listing := execute(t, "history", record+".sqlite3")
	require.Contains(t, listing, "RUN")

	var result runResult
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &result))
	require.Equal(t, record+".sqlite3", result.RecordingTo)
}

func TestGenerateThenRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "synthetic.json")
	execute(t, "generate", "--processes", "6", "--memory", "600", "--max-size", "200",
		"--size-dist", "exponential", "--technique", "worst-fit", "--seed", "5", "--output", path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"technique": "worst-fit"`)

	output := filepath.Join(dir, "result.json")
	execute(t, "run", path, "--technique", "", "--ticks", "0", "--output", output, "--record", "")

	var result runResult
	data, err = os.ReadFile(output)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &result))
	require.True(t, result.Idle)
	require.Equal(t, "worst-fit", result.Technique)
	require.Equal(t, 600, result.Snapshot.TotalMemory)
	require.Len(t, result.Snapshot.Processes, 6)
}
