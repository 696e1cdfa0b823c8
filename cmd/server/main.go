package main

import (
	"embed"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"html/template"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/process"
	"github.com/tebeka/atexit"

	"github.com/miretskiy/fitsim/recording"
	"github.com/miretskiy/fitsim/simulator"
	"github.com/miretskiy/fitsim/workload"
)

//go:embed templates/index.html
var templatesFS embed.FS

var indexTemplate *template.Template

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		return true
	},
}

// Client message types
type ClientMessage struct {
	Type        string                 `json:"type"`
	Speed       int                    `json:"speed,omitempty"`
	Technique   string                 `json:"technique,omitempty"`
	TotalMemory int                    `json:"totalMemory,omitempty"`
	Process     *simulator.ProcessSpec `json:"process,omitempty"`
	ProcessID   string                 `json:"processId,omitempty"`
}

type server struct {
	state *simState
}

// handleMessage applies one client command to the shared simulator
func (srv *server) handleMessage(msg ClientMessage) error {
	state := srv.state
	switch msg.Type {
	case "start":
		return state.do(func(sim *simulator.Simulator) error { return sim.Start() })
	case "pause":
		return state.do(func(sim *simulator.Simulator) error { return sim.Pause() })
	case "resume":
		return state.do(func(sim *simulator.Simulator) error { return sim.Resume() })
	case "reset":
		return state.do(func(sim *simulator.Simulator) error {
			sim.Reset()
			return nil
		})
	case "step":
		return state.do(func(sim *simulator.Simulator) error {
			sim.Step()
			return nil
		})
	case "set_speed":
		return state.setSpeed(msg.Speed)
	case "set_technique":
		technique, err := simulator.ParseTechnique(msg.Technique)
		if err != nil {
			return err
		}
		return state.do(func(sim *simulator.Simulator) error { return sim.SetTechnique(technique) })
	case "set_total_memory":
		return state.do(func(sim *simulator.Simulator) error { return sim.SetTotalMemory(msg.TotalMemory) })
	case "submit_process":
		if msg.Process == nil {
			return errors.New("submit_process requires a process")
		}
		return state.do(func(sim *simulator.Simulator) error {
			_, err := sim.SubmitProcess(*msg.Process)
			return err
		})
	case "terminate_process":
		return state.do(func(sim *simulator.Simulator) error { return sim.TerminateProcess(msg.ProcessID) })
	default:
		return fmt.Errorf("unknown command %q", msg.Type)
	}
}

func (srv *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Error upgrading connection: %v", err)
		return
	}
	defer conn.Close()

	// Wrap connection with mutex for safe concurrent writes
	client := &safeConn{Conn: conn}
	srv.state.addClient(client)
	defer srv.state.removeClient(client)

	log.Println("Client connected")

	// Send initial status and state
	if err := client.WriteJSON(srv.state.status()); err != nil {
		log.Printf("Error sending status: %v", err)
		return
	}
	snap := srv.state.snapshot()
	if err := client.WriteJSON(ServerMessage{Type: "state", Snapshot: &snap}); err != nil {
		log.Printf("Error sending state: %v", err)
		return
	}

	// Handle messages from client
	for {
		var msg ClientMessage
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Error reading message: %v", err)
			}
			break
		}

		log.Printf("Received command: %s", msg.Type)

		if err := srv.handleMessage(msg); err != nil {
			log.Printf("Command %s failed: %v", msg.Type, err)
			client.WriteJSON(ServerMessage{Type: "error", Error: err.Error()})
			continue
		}
		srv.state.broadcast(srv.state.status())
		srv.state.publishState()
	}

	log.Println("Client disconnected")
}

func (srv *server) serveHome(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Techniques []simulator.Technique
		Config     simulator.SimConfig
	}{
		Techniques: simulator.Techniques,
	}
	srv.state.do(func(sim *simulator.Simulator) error {
		data.Config = sim.Config()
		return nil
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		log.Printf("Error executing template: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (srv *server) serveState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, srv.state.snapshot())
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func serveResource(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

// serveImport replaces the simulation with an uploaded workbook
func (srv *server) serveImport(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing workbook upload: %w", err))
		return
	}
	defer file.Close()

	bundle, err := workload.Parse(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := srv.state.do(func(sim *simulator.Simulator) error {
		return sim.ImportWorkload(bundle.ToImport())
	}); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	log.Printf("Imported %d processes, total memory %d KB", len(bundle.Processes), bundle.TotalMemory)
	srv.state.broadcast(srv.state.status())
	srv.state.publishState()
	writeJSON(w, http.StatusOK, bundle)
}

func serveTemplate(w http.ResponseWriter, _ *http.Request) {
	filename := fmt.Sprintf("memory-allocation-template-%s.xlsx", time.Now().UTC().Format("2006-01-02T15-04-05"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	if err := workload.WriteTemplate(w, rng); err != nil {
		log.Printf("Error writing template: %v", err)
	}
}

func quitHandler(w http.ResponseWriter, _ *http.Request) {
	log.Println("Shutdown requested via /quitquitquit")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "Server shutting down...")

	go func() {
		time.Sleep(100 * time.Millisecond)
		log.Println("Server stopped")
		atexit.Exit(0)
	}()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (srv *server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", srv.serveHome).Methods(http.MethodGet)
	r.HandleFunc("/ws", srv.handleWebSocket)
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/api/state", srv.serveState).Methods(http.MethodGet)
	r.HandleFunc("/api/resource", serveResource).Methods(http.MethodGet)
	r.HandleFunc("/api/import", srv.serveImport).Methods(http.MethodPost)
	r.HandleFunc("/api/template", serveTemplate).Methods(http.MethodGet)
	r.HandleFunc("/quitquitquit", quitHandler).Methods(http.MethodPost)
	return r
}

func loadTemplates() error {
	var err error
	indexTemplate, err = template.ParseFS(templatesFS, "templates/index.html")
	return err
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func main() {
	// A missing .env is fine
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Error loading .env: %v", err)
	}

	addr := flag.String("addr", envOr("FITSIM_ADDR", ":8080"), "Listen address")
	record := flag.String("record", envOr("FITSIM_RECORD", ""), "Record events and logs to <path>.sqlite3")
	memory := flag.Int("memory", simulator.DefaultConfig().TotalMemory, "Total memory in KB")
	technique := flag.String("technique", simulator.DefaultConfig().Technique.String(), "Fit technique")
	open := flag.Bool("open", false, "Open the visualizer in a browser")
	flag.Parse()

	err := loadTemplates()
	if err != nil {
		log.Fatalf("Error loading template: %v", err)
	}

	config := simulator.DefaultConfig()
	config.TotalMemory = *memory
	if config.Technique, err = simulator.ParseTechnique(*technique); err != nil {
		log.Fatalf("Invalid technique: %v", err)
	}

	opts := []simulator.Option{simulator.WithObserver(eventCounter{})}
	var closers []func() error
	if *record != "" {
		recorder, err := recording.New(*record)
		if err != nil {
			log.Fatalf("Error creating recorder: %v", err)
		}
		closers = append(closers, recorder.Close)
		opts = append(opts, simulator.WithObserver(recorder))
		log.Printf("Recording to %s", recorder.Filename())
	}

	state, err := newSimState(config, opts...)
	if err != nil {
		log.Fatalf("Error creating simulator: %v", err)
	}
	// atexit runs handlers in no fixed order, so one handler does the whole sequence
	atexit.Register(func() { state.shutdown(closers...) })
	go tickLoop(state)

	initPrometheusMetrics()
	updatePrometheusMetrics(state.snapshot())

	srv := &server{state: state}
	http.Handle("/", srv.router())

	log.Printf("Server starting on http://localhost%s", *addr)
	log.Printf("WebSocket endpoint: ws://localhost%s/ws", *addr)
	log.Printf("Shutdown endpoint: http://localhost%s/quitquitquit", *addr)

	if *open {
		go func() {
			time.Sleep(200 * time.Millisecond)
			if err := browser.OpenURL("http://localhost" + *addr); err != nil {
				log.Printf("Error opening browser: %v", err)
			}
		}()
	}

	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.Printf("Server error: %v", err)
		atexit.Exit(1)
	}
}
