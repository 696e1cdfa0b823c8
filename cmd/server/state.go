package main

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/miretskiy/fitsim/simulator"
)

// Server message types
type ServerMessage struct {
	Type     string                     `json:"type"`
	Running  *bool                      `json:"running,omitempty"`
	Config   *simulator.SimConfig       `json:"config,omitempty"`
	Snapshot *simulator.Snapshot        `json:"snapshot,omitempty"`
	State    *simulator.SimulationState `json:"simulation,omitempty"`
	Error    string                     `json:"error,omitempty"`
}

// simState serializes every tick and user action on the shared simulator
// and fans state out to the connected clients
type simState struct {
	sim     *simulator.Simulator
	mu      sync.Mutex
	stopCh  chan struct{}
	stopped sync.Once
	speedCh chan time.Duration

	clientsMu sync.Mutex
	clients   map[*safeConn]struct{}
}

func newSimState(config simulator.SimConfig, opts ...simulator.Option) (*simState, error) {
	sim, err := simulator.NewSimulator(config, opts...)
	if err != nil {
		return nil, err
	}
	sim.LogEvent = func(msg string) {
		log.Printf("[SIM] %s", msg)
	}

	return &simState{
		sim:     sim,
		stopCh:  make(chan struct{}),
		speedCh: make(chan time.Duration, 1),
		clients: make(map[*safeConn]struct{}),
	}, nil
}

// do runs fn with the simulator locked
func (s *simState) do(fn func(sim *simulator.Simulator) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.sim)
}

// setSpeed changes the pacing and tells the tick loop to re-arm its ticker
func (s *simState) setSpeed(ms int) error {
	s.mu.Lock()
	err := s.sim.SetSpeed(ms)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	// Keep only the latest pending speed
	select {
	case <-s.speedCh:
	default:
	}
	s.speedCh <- time.Duration(ms) * time.Millisecond
	return nil
}

// step advances one tick if the clock is running and not paused. Nothing
// ticks once stop has been called.
func (s *simState) step() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.stopCh:
		return false
	default:
	}
	if !s.sim.IsTicking() {
		return false
	}
	s.sim.Step()
	return true
}

func (s *simState) snapshot() simulator.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sim.Snapshot()
}

func (s *simState) status() ServerMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.sim.State()
	config := s.sim.Config()
	running := s.sim.IsTicking()
	return ServerMessage{
		Type:    "status",
		Running: &running,
		Config:  &config,
		State:   &state,
	}
}

func (s *simState) speed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.sim.Config().SpeedMs) * time.Millisecond
}

// stop signals the tick loop to stop
func (s *simState) stop() {
	s.stopped.Do(func() { close(s.stopCh) })
}

// shutdown stops the tick loop, then runs each closer with the simulator
// locked so no observer callback is in flight
func (s *simState) shutdown(closers ...func() error) {
	s.stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range closers {
		if err := c(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}
}

func (s *simState) addClient(c *safeConn) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[c] = struct{}{}
}

func (s *simState) removeClient(c *safeConn) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	delete(s.clients, c)
}

// broadcast sends msg to every client, dropping clients whose write fails
func (s *simState) broadcast(msg ServerMessage) {
	s.clientsMu.Lock()
	clients := make([]*safeConn, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.Unlock()

	for _, c := range clients {
		if err := c.WriteJSON(msg); err != nil {
			log.Printf("Error sending %s: %v", msg.Type, err)
			s.removeClient(c)
			c.Close()
		}
	}
}

// publishState pushes the full snapshot to every client and refreshes the
// Prometheus gauges
func (s *simState) publishState() {
	snap := s.snapshot()
	updatePrometheusMetrics(snap)
	s.broadcast(ServerMessage{Type: "state", Snapshot: &snap})
}

// tickLoop calls step at the configured pace and publishes the result.
// A speed change re-arms the ticker immediately.
func tickLoop(state *simState) {
	ticker := time.NewTicker(state.speed())
	defer ticker.Stop()

	for {
		select {
		case <-state.stopCh:
			log.Println("Tick loop stopping")
			return

		case d := <-state.speedCh:
			ticker.Reset(d)

		case <-ticker.C:
			if state.step() {
				state.publishState()
			}
		}
	}
}

// safeConn wraps a WebSocket connection with a mutex to prevent concurrent writes
type safeConn struct {
	*websocket.Conn
	writeMu sync.Mutex
}

func (sc *safeConn) WriteJSON(v interface{}) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	return sc.Conn.WriteJSON(v)
}
