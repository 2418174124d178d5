// SPDX-License-Identifier: MIT

package jenkins

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// MockServer provides a configurable fake Jenkins for testing the
// four-phase protocol without a real instance.
type MockServer struct {
	*httptest.Server

	mu            sync.Mutex
	nextBuild     int
	queuePolls    int // queue polls before the item reports an executable
	neverDequeue  bool
	building      map[int]int // build number -> remaining "building" polls
	consoleText   map[int]string
	cancelCalls   int
	triggerStatus int // non-zero forces this HTTP status on trigger
	lastAction    string
	lastAuth      string
}

// NewMockServer creates a mock Jenkins where triggered builds dequeue after
// one queue poll and finish after one build poll.
func NewMockServer() *MockServer {
	m := &MockServer{
		nextBuild:   41,
		building:    make(map[int]int),
		consoleText: make(map[int]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/job/", m.handleJob)
	mux.HandleFunc("/queue/item/", m.handleQueueItem)
	mux.HandleFunc("/queue/cancelItem", m.handleCancel)

	m.Server = httptest.NewServer(mux)
	return m
}

// SetQueuePolls makes the next triggered build stay queued for n polls.
func (m *MockServer) SetQueuePolls(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queuePolls = n
}

// SetNeverDequeue keeps every queued item without an executor forever.
func (m *MockServer) SetNeverDequeue(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.neverDequeue = v
}

// SetBuildingPolls makes a build report building=true for n status polls.
func (m *MockServer) SetBuildingPolls(number, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.building[number] = n
}

// SetConsoleText sets the console log returned for a build.
func (m *MockServer) SetConsoleText(number int, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consoleText[number] = text
}

// SetTriggerStatus forces an HTTP status on buildWithParameters.
func (m *MockServer) SetTriggerStatus(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggerStatus = code
}

// CancelCalls returns how many cancelItem requests were received.
func (m *MockServer) CancelCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelCalls
}

// LastAction returns the ACTION parameter of the most recent trigger.
func (m *MockServer) LastAction() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastAction
}

// LastAuth returns the Authorization header of the most recent trigger.
func (m *MockServer) LastAuth() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastAuth
}

func (m *MockServer) handleJob(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/job/")
	parts := strings.Split(rest, "/")

	// /job/<name>/buildWithParameters
	if len(parts) == 2 && parts[1] == "buildWithParameters" {
		m.handleTrigger(w, r)
		return
	}

	// /job/<name>/<number>/api/json and /job/<name>/<number>/consoleText
	if len(parts) >= 3 {
		var number int
		if _, err := fmt.Sscanf(parts[1], "%d", &number); err != nil {
			http.NotFound(w, r)
			return
		}
		switch parts[2] {
		case "api":
			m.handleBuildStatus(w, number)
			return
		case "consoleText":
			m.handleConsole(w, number)
			return
		}
	}
	http.NotFound(w, r)
}

func (m *MockServer) handleTrigger(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastAction = r.URL.Query().Get("ACTION")
	m.lastAuth = r.Header.Get("Authorization")

	if m.triggerStatus != 0 {
		w.WriteHeader(m.triggerStatus)
		return
	}

	m.nextBuild++
	// Jenkins answers with the queue item location, not the build number.
	w.Header().Set("Location", m.URL+fmt.Sprintf("/queue/item/%d/", m.nextBuild))
	w.WriteHeader(http.StatusCreated)
}

func (m *MockServer) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.neverDequeue {
		writeJSON(w, map[string]any{"why": "waiting for next available executor"})
		return
	}
	if m.queuePolls > 0 {
		m.queuePolls--
		writeJSON(w, map[string]any{"why": "waiting for next available executor"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/queue/item/")
	var number int
	if _, err := fmt.Sscanf(rest, "%d", &number); err != nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]any{"executable": map[string]any{"number": number}})
}

func (m *MockServer) handleBuildStatus(w http.ResponseWriter, number int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	building := false
	if remaining, ok := m.building[number]; ok && remaining > 0 {
		m.building[number] = remaining - 1
		building = true
	}
	writeJSON(w, map[string]any{"building": building, "result": "SUCCESS"})
}

func (m *MockServer) handleConsole(w http.ResponseWriter, number int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	text, ok := m.consoleText[number]
	if !ok {
		text = "Started by user admin\n[Pipeline] echo\nstarted\nFinished: SUCCESS\n"
	}
	_, _ = w.Write([]byte(text))
}

func (m *MockServer) handleCancel(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelCalls++
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
