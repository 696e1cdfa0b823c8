package simulator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// RunState is the control state of the clock
type RunState int

const (
	RunStateStopped RunState = iota
	RunStateRunning
	RunStatePaused
)

func (rs RunState) String() string {
	switch rs {
	case RunStateStopped:
		return "stopped"
	case RunStateRunning:
		return "running"
	case RunStatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// ParseRunState parses a string into RunState
func ParseRunState(s string) (RunState, error) {
	switch s {
	case "stopped":
		return RunStateStopped, nil
	case "running":
		return RunStateRunning, nil
	case "paused":
		return RunStatePaused, nil
	default:
		return RunStateStopped, fmt.Errorf("invalid run state: %s", s)
	}
}

// MarshalJSON implements json.Marshaler for RunState
func (rs RunState) MarshalJSON() ([]byte, error) {
	return json.Marshal(rs.String())
}

// UnmarshalJSON implements json.Unmarshaler for RunState
func (rs *RunState) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRunState(s)
	if err != nil {
		return err
	}
	*rs = parsed
	return nil
}

// SimulationState is the control record exposed to the UI
type SimulationState struct {
	RunState     RunState  `json:"runState"`
	IsRunning    bool      `json:"isRunning"`
	IsPaused     bool      `json:"isPaused"`
	Speed        int       `json:"speed"` // Milliseconds per tick
	CurrentTime  int       `json:"currentTime"`
	Technique    Technique `json:"technique"`
	LastFitIndex int       `json:"lastFitIndex"` // Next-fit cursor
}

// Snapshot is everything the presentation layer renders, captured at one
// point in time
type Snapshot struct {
	State       SimulationState   `json:"simulation"`
	TotalMemory int               `json:"totalMemory"`
	Blocks      []MemoryBlock     `json:"memoryBlocks"`
	Processes   []Process         `json:"processes"`
	Holes       []Hole            `json:"holes"`
	Stats       Stats             `json:"stats"`
	Logs        []LogEntry        `json:"logs"`
	Events      []SimulationEvent `json:"events"`
}

// ImportedProcess is one row of a bulk import
type ImportedProcess struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// ImportBatch is a validated-on-apply bulk import: a new memory size and the
// processes to queue on it
type ImportBatch struct {
	TotalMemory int               `json:"totalMemory"`
	Processes   []ImportedProcess `json:"processes"`
}

// Option configures a Simulator
type Option func(*Simulator)

// WithIDGenerator replaces the default xid-based id generator
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *Simulator) { s.ids = ids }
}

// WithClock replaces time.Now for log timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// WithObserver registers an observer for events and log entries
func WithObserver(o Observer) Option {
	return func(s *Simulator) { s.observers = append(s.observers, o) }
}

// Simulator is a PURE discrete-time simulator with NO concurrency primitives.
// All state is mutated single-threaded through its methods; one call to Step
// resolves a whole tick before returning. The caller (cmd/server) manages
// pacing and serializes ticks with user actions.
type Simulator struct {
	config       SimConfig
	ids          IDGenerator
	now          func() time.Time
	memory       *MemoryStore
	processes    []*Process
	log          *EventLog
	observers    []Observer
	runState     RunState
	currentTime  int // Ticks elapsed since reset
	lastFitIndex int // Next-fit cursor into the eligible hole list
	colorIndex   int // Rotates through ProcessColors

	// Event logging callback (optional, for UI/debugging)
	LogEvent func(msg string)
}

// NewSimulator creates a new simulator holding one hole spanning all of memory
func NewSimulator(config SimConfig, opts ...Option) (*Simulator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Simulator{
		config:    config,
		ids:       NewXIDGenerator(),
		now:       time.Now,
		processes: make([]*Process, 0),
		log:       NewEventLog(config.LogCapacity),
		runState:  RunStateStopped,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.memory = NewMemoryStore(config.TotalMemory, s.ids)

	return s, nil
}

// AddObserver registers an observer after construction
func (s *Simulator) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

// Reset clears processes, blocks, logs and events and stops the clock.
// Configuration, observers and the LogEvent callback are kept.
func (s *Simulator) Reset() {
	s.memory.Reset(s.config.TotalMemory)
	s.processes = make([]*Process, 0)
	s.log.Clear()
	s.runState = RunStateStopped
	s.currentTime = 0
	s.lastFitIndex = 0
	s.colorIndex = 0

	s.logEvent("[RESET] memory=%d technique=%s", s.config.TotalMemory, s.config.Technique)
	for _, o := range s.observers {
		o.OnReset()
	}
}

// Start moves a stopped simulation to running
func (s *Simulator) Start() error {
	if s.runState != RunStateStopped {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, s.runState)
	}
	s.runState = RunStateRunning
	s.logEvent("[CONTROL] started at t=%d", s.currentTime)
	return nil
}

// Pause suspends a running simulation
func (s *Simulator) Pause() error {
	if s.runState != RunStateRunning {
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, s.runState)
	}
	s.runState = RunStatePaused
	s.logEvent("[CONTROL] paused at t=%d", s.currentTime)
	return nil
}

// Resume continues a paused simulation
func (s *Simulator) Resume() error {
	if s.runState != RunStatePaused {
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, s.runState)
	}
	s.runState = RunStateRunning
	s.logEvent("[CONTROL] resumed at t=%d", s.currentTime)
	return nil
}

// IsTicking returns true if the clock should be driven (running and not paused)
func (s *Simulator) IsTicking() bool {
	return s.runState == RunStateRunning
}

// SetSpeed changes the wall-clock pacing. Any positive value is accepted.
func (s *Simulator) SetSpeed(ms int) error {
	if ms <= 0 {
		return ErrInvalidConfig("speedMs must be > 0")
	}
	s.config.SpeedMs = ms
	return nil
}

// SetTechnique switches the fit technique and rewinds the next-fit cursor
func (s *Simulator) SetTechnique(t Technique) error {
	cfg := s.config
	cfg.Technique = t
	if err := cfg.Validate(); err != nil {
		return err
	}
	old := s.config.Technique
	s.config.Technique = t
	s.lastFitIndex = 0
	if old != t {
		s.addLog(LogTypeInfo, fmt.Sprintf("Technique changed to %s", t), fmt.Sprintf("Was %s", old), nil)
	}
	return nil
}

// SetTotalMemory resizes the address space. Every process and block is
// discarded, exactly as Reset does.
func (s *Simulator) SetTotalMemory(total int) error {
	if total <= 0 {
		return ErrInvalidConfig("totalMemory must be > 0")
	}
	s.config.TotalMemory = total
	s.Reset()
	return nil
}

// SubmitProcess queues a new process in waiting state. When spec.Address is
// set, the range must currently be free; otherwise an *AddressConflictError
// is returned and nothing is queued.
func (s *Simulator) SubmitProcess(spec ProcessSpec) (Process, error) {
	if err := spec.Validate(); err != nil {
		return Process{}, err
	}
	name := strings.TrimSpace(spec.Name)

	if spec.Address != nil {
		if _, ok := s.memory.HoleContaining(*spec.Address, spec.Size); !ok {
			conflict := &AddressConflictError{Address: *spec.Address, Size: spec.Size}
			s.addLog(LogTypeError, fmt.Sprintf("Rejected %s", name), conflict.Error(), nil)
			return Process{}, conflict
		}
	}

	p := &Process{
		ID:               s.ids.Generate(),
		Name:             name,
		Size:             spec.Size,
		BurstTime:        spec.BurstTime,
		RemainingTime:    spec.BurstTime,
		ArrivalTime:      spec.ArrivalTime,
		Color:            ProcessColors[s.colorIndex%len(ProcessColors)],
		Status:           StatusWaiting,
		RequestedAddress: copyInt(spec.Address),
	}
	s.colorIndex++
	s.processes = append(s.processes, p)

	details := fmt.Sprintf("Arrives at t=%d", p.ArrivalTime)
	if p.RequestedAddress != nil {
		details += fmt.Sprintf(", placed at address %d", *p.RequestedAddress)
	}
	s.addLog(LogTypeInfo, fmt.Sprintf("Queued %s", p.Name), details, p)

	return p.clone(), nil
}

// Step advances simulated time by one tick. Arrivals are resolved first, in
// submission order, then every process that was already running is aged by
// one tick and reclaimed when it reaches zero. A process placed during this
// tick is not aged until the next one.
func (s *Simulator) Step() {
	s.currentTime++
	now := s.currentTime

	for _, p := range s.processes {
		if p.Status != StatusWaiting || p.ArrivalTime > now {
			continue
		}
		if !p.arrived {
			p.arrived = true
			s.emit(SimulationEvent{
				Time:        now,
				Type:        EventTypeProcessArrival,
				ProcessName: p.Name,
				Details:     fmt.Sprintf("%s arrived", p.Name),
			})
		}
		s.allocateProcess(p)
	}

	for _, p := range s.processes {
		if p.Status != StatusRunning || *p.AllocatedAt == now {
			continue
		}
		p.RemainingTime--
		if p.RemainingTime <= 0 {
			p.RemainingTime = 0
			s.deallocateProcess(p)
		}
	}
}

// StepUntil advances until the target tick is reached
func (s *Simulator) StepUntil(targetTime int) int {
	for s.currentTime < targetTime {
		s.Step()
	}
	return s.currentTime
}

// RunUntilIdle steps until no process is waiting or running, or maxTicks
// ticks have elapsed. It returns the number of ticks stepped.
func (s *Simulator) RunUntilIdle(maxTicks int) int {
	stepped := 0
	for stepped < maxTicks && !s.IsIdle() {
		s.Step()
		stepped++
	}
	return stepped
}

// IsIdle returns true if every process has completed
func (s *Simulator) IsIdle() bool {
	for _, p := range s.processes {
		if p.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// DeallocateProcess reclaims the block of a running process and marks it
// completed. Calling it on a waiting or completed process does nothing.
func (s *Simulator) DeallocateProcess(processID string) error {
	p := s.find(processID)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrUnknownProcess, processID)
	}
	if p.Status == StatusRunning {
		s.deallocateProcess(p)
	}
	return nil
}

// TerminateProcess ends a process early. A running process has its block
// reclaimed; a waiting one is retired without ever being placed.
func (s *Simulator) TerminateProcess(processID string) error {
	p := s.find(processID)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrUnknownProcess, processID)
	}
	switch p.Status {
	case StatusRunning:
		remaining := p.RemainingTime
		s.deallocateProcess(p)
		s.addLog(LogTypeInfo, fmt.Sprintf("Terminated %s", p.Name),
			fmt.Sprintf("%d ticks were remaining", remaining), p)
	case StatusWaiting:
		p.Status = StatusCompleted
		s.addLog(LogTypeInfo, fmt.Sprintf("Terminated %s", p.Name), "Never allocated", p)
	}
	return nil
}

// ImportWorkload replaces the whole simulation with a bulk-imported batch.
// The batch is validated in full first; on failure an *ImportError is
// returned and nothing is changed. On success the simulator is reset to the
// new memory size and every process is queued with the default burst time,
// arriving at the current tick.
func (s *Simulator) ImportWorkload(batch ImportBatch) error {
	var problems []string
	if batch.TotalMemory <= 0 {
		problems = append(problems, fmt.Sprintf("totalMemory must be > 0, got %d", batch.TotalMemory))
	}
	// Names are unique under Unicode case folding, as in the workbook parser
	fold := cases.Fold()
	seen := make(map[string]bool, len(batch.Processes))
	for i, p := range batch.Processes {
		name := strings.TrimSpace(p.Name)
		key := fold.String(name)
		switch {
		case name == "":
			problems = append(problems, fmt.Sprintf("process %d has no name", i+1))
		case seen[key]:
			problems = append(problems, fmt.Sprintf("duplicate process name %q", name))
		}
		seen[key] = true
		if p.Size <= 0 {
			problems = append(problems, fmt.Sprintf("process %q has invalid size %d", name, p.Size))
		}
	}
	if len(problems) > 0 {
		return &ImportError{Problems: problems}
	}

	s.config.TotalMemory = batch.TotalMemory
	s.Reset()
	for _, p := range batch.Processes {
		// Validated above; SubmitProcess cannot fail without an address.
		if _, err := s.SubmitProcess(ProcessSpec{
			Name:        p.Name,
			Size:        p.Size,
			BurstTime:   s.config.DefaultBurstTime,
			ArrivalTime: s.currentTime,
		}); err != nil {
			return fmt.Errorf("queue imported process %q: %w", p.Name, err)
		}
	}
	s.addLog(LogTypeInfo, fmt.Sprintf("Imported %d processes", len(batch.Processes)),
		fmt.Sprintf("Total memory %d KB", batch.TotalMemory), nil)

	return nil
}

// Config returns a copy of the current configuration
func (s *Simulator) Config() SimConfig {
	return s.config
}

// CurrentTime returns the current tick
func (s *Simulator) CurrentTime() int {
	return s.currentTime
}

// TotalMemory returns the size of the address space
func (s *Simulator) TotalMemory() int {
	return s.memory.Total()
}

// Blocks returns the current block list in address order
func (s *Simulator) Blocks() []MemoryBlock {
	return s.memory.Blocks()
}

// Holes returns the current holes in address order
func (s *Simulator) Holes() []Hole {
	return s.memory.Holes()
}

// Processes returns copies of all processes in submission order
func (s *Simulator) Processes() []Process {
	processes := make([]Process, len(s.processes))
	for i, p := range s.processes {
		processes[i] = p.clone()
	}
	return processes
}

// Process returns a copy of one process
func (s *Simulator) Process(processID string) (Process, bool) {
	p := s.find(processID)
	if p == nil {
		return Process{}, false
	}
	return p.clone(), true
}

// Stats computes the current memory statistics
func (s *Simulator) Stats() Stats {
	return ComputeStats(s.memory.Total(), s.memory.blocks, s.Processes())
}

// Logs returns the bounded log, newest first
func (s *Simulator) Logs() []LogEntry {
	return s.log.Logs()
}

// Events returns the full event timeline in order
func (s *Simulator) Events() []SimulationEvent {
	return s.log.Events()
}

// State returns the control record
func (s *Simulator) State() SimulationState {
	return SimulationState{
		RunState:     s.runState,
		IsRunning:    s.runState != RunStateStopped,
		IsPaused:     s.runState == RunStatePaused,
		Speed:        s.config.SpeedMs,
		CurrentTime:  s.currentTime,
		Technique:    s.config.Technique,
		LastFitIndex: s.lastFitIndex,
	}
}

// Snapshot captures every view at once
func (s *Simulator) Snapshot() Snapshot {
	processes := s.Processes()
	return Snapshot{
		State:       s.State(),
		TotalMemory: s.memory.Total(),
		Blocks:      s.memory.Blocks(),
		Processes:   processes,
		Holes:       s.memory.Holes(),
		Stats:       ComputeStats(s.memory.Total(), s.memory.blocks, processes),
		Logs:        s.log.Logs(),
		Events:      s.log.Events(),
	}
}

// CheckInvariants verifies the block partition and that every running
// process owns exactly one block of its own size
func (s *Simulator) CheckInvariants() error {
	if err := s.memory.CheckInvariants(); err != nil {
		return err
	}
	owned := make(map[string][]MemoryBlock)
	for _, b := range s.memory.blocks {
		if !b.IsHole {
			owned[b.ProcessID] = append(owned[b.ProcessID], b)
		}
	}
	for _, p := range s.processes {
		blocks := owned[p.ID]
		if p.Status != StatusRunning {
			if len(blocks) != 0 {
				return fmt.Errorf("%s process %s still owns %d blocks", p.Status, p.Name, len(blocks))
			}
			continue
		}
		if len(blocks) != 1 {
			return fmt.Errorf("running process %s owns %d blocks", p.Name, len(blocks))
		}
		if blocks[0].Size != p.Size {
			return fmt.Errorf("process %s has size %d but its block has size %d", p.Name, p.Size, blocks[0].Size)
		}
		if p.StartAddress == nil || blocks[0].Start != *p.StartAddress {
			return fmt.Errorf("process %s start address does not match its block", p.Name)
		}
	}
	return nil
}

func (s *Simulator) find(processID string) *Process {
	for _, p := range s.processes {
		if p.ID == processID {
			return p
		}
	}
	return nil
}

// emit appends an event to the timeline and fans it out to observers
func (s *Simulator) emit(event SimulationEvent) {
	s.log.AppendEvent(event)
	s.logEvent("[EVENT] %s", event)
	for _, o := range s.observers {
		o.OnEvent(event)
	}
}

// addLog records a log entry stamped with the active technique
func (s *Simulator) addLog(logType LogType, message, details string, p *Process) {
	entry := LogEntry{
		ID:        s.ids.Generate(),
		Timestamp: s.now(),
		Tick:      s.currentTime,
		Type:      logType,
		Message:   message,
		Details:   details,
		Technique: s.config.Technique,
	}
	if p != nil {
		entry.ProcessID = p.ID
		entry.ProcessName = p.Name
	}
	s.log.PushLog(entry)
	for _, o := range s.observers {
		o.OnLog(entry)
	}
}

// logEvent sends a trace line to the LogEvent callback, if set
func (s *Simulator) logEvent(format string, args ...interface{}) {
	if s.LogEvent != nil {
		s.LogEvent(fmt.Sprintf(format, args...))
	}
}
