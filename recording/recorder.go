// Package recording persists the event timeline and allocation log of a
// simulation into a SQLite database so runs can be inspected after the fact.
package recording

import (
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/miretskiy/fitsim/simulator"
)

const defaultBatchSize = 1000

// Recorder is a simulator.Observer that writes every event and log entry to
// a SQLite database. Rows are buffered and written in one transaction per
// batch. Each Reset of the observed simulator starts a new run. A Recorder
// is safe for concurrent use; callbacks after Close are dropped.
type Recorder struct {
	*sql.DB
	mu             sync.Mutex
	runStatement   *sql.Stmt
	eventStatement *sql.Stmt
	logStatement   *sql.Stmt

	filename  string
	runID     string
	runs      int
	eventSeq  int
	events    []eventRow
	logs      []simulator.LogEntry
	batchSize int
	now       func() time.Time
	err       error
	closed    bool
}

type eventRow struct {
	seq   int
	event simulator.SimulationEvent
}

// Option configures a Recorder
type Option func(*Recorder)

// WithBatchSize sets how many buffered rows trigger a flush
func WithBatchSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithClock replaces time.Now for run start times
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// New creates <path>.sqlite3 and starts the first run. An empty path picks a
// unique name. An existing file is never overwritten.
func New(path string, opts ...Option) (*Recorder, error) {
	r := &Recorder{
		batchSize: defaultBatchSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	if path == "" {
		path = "fitsim_run_" + xid.New().String()
	}
	r.filename = path + ".sqlite3"
	if _, err := os.Stat(r.filename); err == nil {
		return nil, fmt.Errorf("file %s already exists", r.filename)
	}

	db, err := sql.Open("sqlite3", r.filename)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", r.filename, err)
	}
	r.DB = db

	if err := r.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	if err := r.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	if err := r.startRun(); err != nil {
		db.Close()
		return nil, err
	}

	atexit.Register(func() { r.Flush() })

	return r, nil
}

// Filename returns the database file being written
func (r *Recorder) Filename() string {
	return r.filename
}

// RunID returns the id of the run currently being recorded
func (r *Recorder) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID
}

// Err returns the first write error. Observer callbacks cannot return
// errors, so failures are kept here and recording stops.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// OnReset flushes the current run and starts a new one
func (r *Recorder) OnReset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.flush() != nil {
		return
	}
	if err := r.startRun(); err != nil {
		r.err = err
	}
}

// OnEvent buffers an event
func (r *Recorder) OnEvent(event simulator.SimulationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.err != nil {
		return
	}
	r.eventSeq++
	r.events = append(r.events, eventRow{seq: r.eventSeq, event: event})
	r.maybeFlush()
}

// OnLog buffers a log entry
func (r *Recorder) OnLog(entry simulator.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.err != nil {
		return
	}
	r.logs = append(r.logs, entry)
	r.maybeFlush()
}

func (r *Recorder) maybeFlush() {
	if len(r.events)+len(r.logs) >= r.batchSize {
		r.flush()
	}
}

// Flush writes all buffered rows in one transaction
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.err
	}
	return r.flush()
}

func (r *Recorder) flush() error {
	if r.err != nil {
		return r.err
	}
	if len(r.events) == 0 && len(r.logs) == 0 {
		return nil
	}

	tx, err := r.Begin()
	if err != nil {
		r.err = err
		return err
	}
	if err := r.writeBuffered(tx); err != nil {
		tx.Rollback()
		r.err = err
		return err
	}
	if err := tx.Commit(); err != nil {
		r.err = err
		return err
	}

	r.events = nil
	r.logs = nil
	return nil
}

func (r *Recorder) writeBuffered(tx *sql.Tx) error {
	eventStmt := tx.Stmt(r.eventStatement)
	for _, row := range r.events {
		e := row.event
		if _, err := eventStmt.Exec(r.runID, row.seq, e.Time, e.Type.String(), e.ProcessName, e.HoleID, e.Details); err != nil {
			return fmt.Errorf("insert event %d: %w", row.seq, err)
		}
	}

	logStmt := tx.Stmt(r.logStatement)
	for _, l := range r.logs {
		if _, err := logStmt.Exec(
			r.runID,
			l.ID,
			l.Tick,
			l.Timestamp.UnixNano(),
			l.Type.String(),
			l.ProcessID,
			l.ProcessName,
			l.Message,
			l.Details,
			l.Technique.String(),
		); err != nil {
			return fmt.Errorf("insert log %s: %w", l.ID, err)
		}
	}
	return nil
}

// Close flushes and closes the database
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	flushErr := r.flush()
	r.closed = true
	if err := r.DB.Close(); err != nil {
		return err
	}
	return flushErr
}

func (r *Recorder) startRun() error {
	r.runID = xid.New().String()
	r.runs++
	r.eventSeq = 0
	if _, err := r.runStatement.Exec(r.runID, r.runs, r.now().UnixNano()); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *Recorder) createTables() error {
	for _, query := range []string{
		`
		CREATE TABLE IF NOT EXISTS runs
		(
			run_id     VARCHAR(20) NOT NULL PRIMARY KEY,
			seq        INTEGER     NOT NULL,
			started_at INTEGER     NOT NULL
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS events
		(
			run_id       VARCHAR(20)  NOT NULL,
			seq          INTEGER      NOT NULL,
			time         INTEGER      NOT NULL,
			type         VARCHAR(32)  NOT NULL,
			process_name VARCHAR(200) NOT NULL,
			hole_id      VARCHAR(32)  NOT NULL DEFAULT '',
			details      TEXT         NOT NULL DEFAULT ''
		);
		`,
		`CREATE INDEX IF NOT EXISTS events_run_index ON events (run_id, seq);`,
		`
		CREATE TABLE IF NOT EXISTS logs
		(
			run_id       VARCHAR(20)  NOT NULL,
			log_id       VARCHAR(32)  NOT NULL,
			tick         INTEGER      NOT NULL,
			timestamp    INTEGER      NOT NULL,
			type         VARCHAR(32)  NOT NULL,
			process_id   VARCHAR(32)  NOT NULL DEFAULT '',
			process_name VARCHAR(200) NOT NULL DEFAULT '',
			message      TEXT         NOT NULL,
			details      TEXT         NOT NULL DEFAULT '',
			technique    VARCHAR(32)  NOT NULL
		);
		`,
		`CREATE INDEX IF NOT EXISTS logs_run_index ON logs (run_id);`,
	} {
		if _, err := r.Exec(query); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (r *Recorder) prepareStatements() error {
	var err error
	r.runStatement, err = r.Prepare(`INSERT INTO runs (run_id, seq, started_at) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	r.eventStatement, err = r.Prepare(
		`INSERT INTO events (run_id, seq, time, type, process_name, hole_id, details) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	r.logStatement, err = r.Prepare(
		`INSERT INTO logs (run_id, log_id, tick, timestamp, type, process_id, process_name, message, details, technique)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	return err
}
