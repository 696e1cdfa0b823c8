package main

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/miretskiy/fitsim/simulator"
	"github.com/miretskiy/fitsim/workload"
)

func newTestServer(t *testing.T) *server {
	t.Helper()
	config := simulator.DefaultConfig()
	config.TotalMemory = 1000
	state, err := newSimState(config, simulator.WithIDGenerator(simulator.NewSequentialIDGenerator()))
	require.NoError(t, err)
	state.sim.LogEvent = nil
	return &server{state: state}
}

func TestHandleMessage_Commands(t *testing.T) {
	srv := newTestServer(t)
	address := 100

	require.NoError(t, srv.handleMessage(ClientMessage{Type: "set_technique", Technique: "best-fit"}))
	require.NoError(t, srv.handleMessage(ClientMessage{Type: "submit_process", Process: &simulator.ProcessSpec{
		Name: "P1", Size: 200, BurstTime: 2, Address: &address,
	}}))
	require.NoError(t, srv.handleMessage(ClientMessage{Type: "start"}))
	require.True(t, srv.state.step())

	snap := srv.state.snapshot()
	require.Equal(t, simulator.TechniqueBestFit, snap.State.Technique)
	require.Equal(t, 1, snap.State.CurrentTime)
	require.Equal(t, simulator.StatusRunning, snap.Processes[0].Status)
	require.Equal(t, 100, *snap.Processes[0].StartAddress)

	require.NoError(t, srv.handleMessage(ClientMessage{Type: "pause"}))
	require.False(t, srv.state.step(), "paused clock does not tick")
	require.NoError(t, srv.handleMessage(ClientMessage{Type: "step"}))
	require.Equal(t, 2, srv.state.snapshot().State.CurrentTime, "manual step works while paused")

	require.NoError(t, srv.handleMessage(ClientMessage{Type: "terminate_process", ProcessID: snap.Processes[0].ID}))
	require.NoError(t, srv.handleMessage(ClientMessage{Type: "set_total_memory", TotalMemory: 4096}))
	snap = srv.state.snapshot()
	require.Equal(t, 4096, snap.TotalMemory)
	require.Empty(t, snap.Processes)
}

func TestHandleMessage_Errors(t *testing.T) {
	srv := newTestServer(t)

	require.ErrorIs(t, srv.handleMessage(ClientMessage{Type: "pause"}), simulator.ErrInvalidTransition)
	require.Error(t, srv.handleMessage(ClientMessage{Type: "set_technique", Technique: "paging"}))
	require.Error(t, srv.handleMessage(ClientMessage{Type: "set_speed", Speed: 0}))
	require.Error(t, srv.handleMessage(ClientMessage{Type: "submit_process"}))
	require.ErrorIs(t, srv.handleMessage(ClientMessage{Type: "terminate_process", ProcessID: "x"}), simulator.ErrUnknownProcess)
	require.Error(t, srv.handleMessage(ClientMessage{Type: "compact"}))
}

func TestSetSpeed_NotifiesTickLoop(t *testing.T) {
	srv := newTestServer(t)

	require.NoError(t, srv.handleMessage(ClientMessage{Type: "set_speed", Speed: 500}))
	require.NoError(t, srv.handleMessage(ClientMessage{Type: "set_speed", Speed: 250}))

	require.Len(t, srv.state.speedCh, 1, "only the latest speed is pending")
	require.Equal(t, 250, srv.state.snapshot().State.Speed)
}

func TestServeState(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, float64(1000), body["totalMemory"])
	require.Contains(t, body, "memoryBlocks")
	require.Contains(t, body, "stats")
}

func TestServeImport(t *testing.T) {
	srv := newTestServer(t)

	var workbook bytes.Buffer
	require.NoError(t, workload.WriteTemplate(&workbook, rand.New(rand.NewSource(1))))
	want := workload.RandomBundle(rand.New(rand.NewSource(1)))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "template.xlsx")
	require.NoError(t, err)
	_, err = part.Write(workbook.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := srv.state.snapshot()
	require.Equal(t, want.TotalMemory, snap.TotalMemory)
	require.Len(t, snap.Processes, len(want.Processes))
}

func TestServeImport_RejectsGarbage(t *testing.T) {
	srv := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "bad.xlsx")
	require.NoError(t, err)
	_, err = part.Write([]byte("not a workbook"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "failed to parse workbook")
	require.Equal(t, 1000, srv.state.snapshot().TotalMemory)
}

func TestServeTemplate(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/template", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "memory-allocation-template-")

	bundle, err := workload.Parse(rec.Body)
	require.NoError(t, err)
	require.NotEmpty(t, bundle.Processes)
}

func TestShutdown_StopsTickLoopBeforeClosing(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.handleMessage(ClientMessage{Type: "set_speed", Speed: 1}))
	require.NoError(t, srv.handleMessage(ClientMessage{Type: "submit_process", Process: &simulator.ProcessSpec{
		Name: "P1", Size: 100, BurstTime: 1000,
	}}))
	require.NoError(t, srv.handleMessage(ClientMessage{Type: "start"}))

	done := make(chan struct{})
	go func() {
		tickLoop(srv.state)
		close(done)
	}()
	require.Eventually(t, func() bool { return srv.state.snapshot().State.CurrentTime > 2 }, time.Second, time.Millisecond)

	var closedAt int
	srv.state.shutdown(func() error {
		closedAt = srv.state.sim.CurrentTime()
		return nil
	})
	<-done

	require.Equal(t, closedAt, srv.state.snapshot().State.CurrentTime, "no tick after close")
	srv.state.shutdown()
}

func TestServeHome_RendersTimeline(t *testing.T) {
	require.NoError(t, loadTemplates())
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `id="timeline"`)
	require.Contains(t, body, "s.events")
	require.Contains(t, body, "esc(e.processName)")
	require.Contains(t, body, "esc(e.details)")
}
