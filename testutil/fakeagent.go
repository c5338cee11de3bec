package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// Request is a request received by a FakeAgent
type Request struct {
	Method        string
	Path          string
	Authorization string
	Body          []byte
}

// Decode unmarshals the request body into v
func (r Request) Decode(t *testing.T, v interface{}) {
	t.Helper()
	JSONUnmarshal(t, r.Body, v)
}

// FakeAgent is an httptest server speaking the agent service's JSON API.
// Default handlers echo chat messages and convert files to "# <name>";
// any route can be replaced with Handle.
type FakeAgent struct {
	*httptest.Server

	mu            sync.Mutex
	ready         bool
	requests      []Request
	overrides     map[string]http.HandlerFunc
	conversations map[string][]map[string]string
	nextConv      int
}

// NewFakeAgent starts a ready fake agent that is closed when the test ends
func NewFakeAgent(t *testing.T) *FakeAgent {
	t.Helper()
	f := &FakeAgent{
		ready:         true,
		overrides:     make(map[string]http.HandlerFunc),
		conversations: make(map[string][]map[string]string),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

// SetReady sets the agent_initialized flag reported by /health
func (f *FakeAgent) SetReady(ready bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = ready
}

// Handle replaces the handler for "METHOD /path"
func (f *FakeAgent) Handle(route string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overrides[route] = h
}

// Requests returns a copy of the received requests in arrival order
func (f *FakeAgent) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// RequestsTo returns the received requests for one path
func (f *FakeAgent) RequestsTo(path string) []Request {
	var out []Request
	for _, r := range f.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// WriteJSON writes v as a JSON response with the given status
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *FakeAgent) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(strings.NewReader(string(body)))

	route := r.Method + " " + r.URL.Path
	f.mu.Lock()
	f.requests = append(f.requests, Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		Body:          body,
	})
	override := f.overrides[route]
	f.mu.Unlock()

	if override != nil {
		override(w, r)
		return
	}

	switch {
	case route == "GET /health":
		f.mu.Lock()
		ready := f.ready
		f.mu.Unlock()
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":            "healthy",
			"agent_initialized": ready,
			"version":           "test",
		})
	case route == "POST /chat":
		f.chat(w, body)
	case route == "POST /convert-file":
		var req struct {
			FilePath     string `json:"file_path"`
			OutputFormat string `json:"output_format"`
		}
		_ = json.Unmarshal(body, &req)
		WriteJSON(w, http.StatusOK, map[string]string{"content": "# " + filepath.Base(req.FilePath)})
	case route == "POST /configure-llm", route == "POST /reload-agent", route == "POST /test-llm":
		WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "ok"})
	case route == "GET /conversations":
		f.mu.Lock()
		ids := make([]string, 0, len(f.conversations))
		for id := range f.conversations {
			ids = append(ids, id)
		}
		f.mu.Unlock()
		WriteJSON(w, http.StatusOK, map[string]interface{}{"conversations": ids, "total": len(ids)})
	case strings.HasPrefix(r.URL.Path, "/conversations/"):
		f.conversation(w, r)
	default:
		WriteJSON(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
	}
}

func (f *FakeAgent) chat(w http.ResponseWriter, body []byte) {
	var req struct {
		Message        string  `json:"message"`
		ConversationID *string `json:"conversation_id"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	f.mu.Lock()
	id := ""
	if req.ConversationID != nil {
		id = *req.ConversationID
	}
	if id == "" {
		f.nextConv++
		id = fmt.Sprintf("conv-%d", f.nextConv)
	}
	reply := "echo: " + req.Message
	f.conversations[id] = append(f.conversations[id], map[string]string{"user": req.Message, "agent": reply})
	f.mu.Unlock()

	WriteJSON(w, http.StatusOK, map[string]string{
		"response":        reply,
		"conversation_id": id,
		"status":          "success",
	})
}

func (f *FakeAgent) conversation(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/conversations/")

	f.mu.Lock()
	history, ok := f.conversations[id]
	if ok && r.Method == http.MethodDelete {
		delete(f.conversations, id)
	}
	f.mu.Unlock()

	if !ok {
		WriteJSON(w, http.StatusNotFound, map[string]string{"detail": "Conversation not found"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		WriteJSON(w, http.StatusOK, map[string]interface{}{"conversation_id": id, "history": history})
	case http.MethodDelete:
		WriteJSON(w, http.StatusOK, map[string]string{"message": "Conversation deleted"})
	default:
		WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "Method Not Allowed"})
	}
}
