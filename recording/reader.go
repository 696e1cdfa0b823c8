package recording

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/miretskiy/fitsim/simulator"
)

// Run summarizes one recorded run
type Run struct {
	ID         string    `json:"id"`
	Seq        int       `json:"seq"`
	StartedAt  time.Time `json:"startedAt"`
	EventCount int       `json:"eventCount"`
	LogCount   int       `json:"logCount"`
	LastTick   int       `json:"lastTick"`
}

// Reader reads recorded runs back from a SQLite database
type Reader struct {
	*sql.DB

	filename string
}

// Open connects to an existing recording
func Open(filename string) (*Reader, error) {
	if _, err := os.Stat(filename); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filename, err)
	}
	return &Reader{DB: db, filename: filename}, nil
}

// Runs lists every run in the order it was started
func (r *Reader) Runs() ([]Run, error) {
	rows, err := r.Query(`
		SELECT
			r.run_id,
			r.seq,
			r.started_at,
			(SELECT COUNT(*) FROM events e WHERE e.run_id = r.run_id),
			(SELECT COUNT(*) FROM logs l WHERE l.run_id = r.run_id),
			COALESCE((SELECT MAX(e.time) FROM events e WHERE e.run_id = r.run_id), 0)
		FROM runs r
		ORDER BY r.seq
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			run       Run
			startedAt int64
		)
		if err := rows.Scan(&run.ID, &run.Seq, &startedAt, &run.EventCount, &run.LogCount, &run.LastTick); err != nil {
			return nil, err
		}
		run.StartedAt = time.Unix(0, startedAt).UTC()
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Events returns the timeline of a run in emission order
func (r *Reader) Events(runID string) ([]simulator.SimulationEvent, error) {
	rows, err := r.Query(`
		SELECT time, type, process_name, hole_id, details
		FROM events
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []simulator.SimulationEvent{}
	for rows.Next() {
		var (
			e         simulator.SimulationEvent
			eventType string
		)
		if err := rows.Scan(&e.Time, &eventType, &e.ProcessName, &e.HoleID, &e.Details); err != nil {
			return nil, err
		}
		if e.Type, err = simulator.ParseEventType(eventType); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Logs returns the log entries of a run, oldest first
func (r *Reader) Logs(runID string) ([]simulator.LogEntry, error) {
	rows, err := r.Query(`
		SELECT log_id, tick, timestamp, type, process_id, process_name, message, details, technique
		FROM logs
		WHERE run_id = ?
		ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []simulator.LogEntry{}
	for rows.Next() {
		var (
			l         simulator.LogEntry
			timestamp int64
			logType   string
			technique string
		)
		if err := rows.Scan(&l.ID, &l.Tick, &timestamp, &logType, &l.ProcessID, &l.ProcessName,
			&l.Message, &l.Details, &technique); err != nil {
			return nil, err
		}
		l.Timestamp = time.Unix(0, timestamp).UTC()
		if l.Type, err = simulator.ParseLogType(logType); err != nil {
			return nil, err
		}
		if l.Technique, err = simulator.ParseTechnique(technique); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
