// Package llmtest provides a fake chat-completions endpoint for tests of
// the transport, SSE parser, pipeline, and state machine. Every server is
// an httptest.Server closed automatically through t.Cleanup.
package llmtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Request is a request captured by Server.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// Server is a recording fake LLM endpoint.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	requests []Request
}

// NewServer starts a Server that records each request and then delegates
// to h.
func NewServer(t testing.TB, h http.HandlerFunc) *Server {
	t.Helper()
	s := &Server{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Body:   body,
		})
		s.mu.Unlock()
		h(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

// NewSSEServer starts a Server that answers every request with the given
// lines as a text/event-stream body, one line per write, flushed.
func NewSSEServer(t testing.TB, lines ...string) *Server {
	t.Helper()
	return NewServer(t, func(w http.ResponseWriter, _ *http.Request) {
		WriteSSE(w, lines...)
	})
}

// NewHangingSSEServer starts a Server that writes lines and then keeps the
// connection open until the client goes away. started is closed once the
// lines have been flushed.
func NewHangingSSEServer(t testing.TB, lines ...string) (srv *Server, started <-chan struct{}) {
	t.Helper()
	ch := make(chan struct{})
	var once sync.Once
	srv = NewServer(t, func(w http.ResponseWriter, r *http.Request) {
		WriteSSE(w, lines...)
		once.Do(func() { close(ch) })
		<-r.Context().Done()
	})
	return srv, ch
}

// NewStatusServer starts a Server that answers with status and body.
func NewStatusServer(t testing.TB, status int, body string) *Server {
	t.Helper()
	return NewServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

// BaseURL returns the server URL in normalized base form ("http://host/v1/").
func (s *Server) BaseURL() string {
	return s.URL + "/v1/"
}

// Requests returns a copy of the captured requests.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// WriteSSE writes each line followed by a newline and flushes after each
// one so clients observe incremental delivery.
func WriteSSE(w http.ResponseWriter, lines ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for _, line := range lines {
		fmt.Fprintf(w, "%s\n", line)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// DataLine builds an SSE data line carrying one content delta.
func DataLine(content string) string {
	payload, _ := json.Marshal(map[string]any{
		"object": "chat.completion.chunk",
		"choices": []map[string]any{
			{"index": 0, "delta": map[string]string{"content": content}},
		},
	})
	return "data: " + string(payload)
}

// RoleLine builds an SSE data line carrying only the assistant role.
func RoleLine() string {
	return `data: {"choices":[{"index":0,"delta":{"role":"assistant"}}]}`
}

// DoneLine is the stream terminator.
const DoneLine = "data: [DONE]"

// Stream builds a complete event stream for the given fragments: a role
// chunk, one data line per fragment separated by blank lines, and [DONE].
func Stream(fragments ...string) []string {
	lines := []string{RoleLine(), ""}
	for _, f := range fragments {
		lines = append(lines, DataLine(f), "")
	}
	return append(lines, DoneLine, "")
}

// CompletionBody builds a non-streaming chat-completions response body.
func CompletionBody(content string) string {
	body, _ := json.Marshal(map[string]any{
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]any{
			{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
		},
	})
	return string(body)
}
