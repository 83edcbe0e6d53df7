// Package graphqltest serves an in-memory todos backend that answers the
// operations in package graphql. Intended for tests.
package graphqltest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Makepad-fr/tada/internal/model"
)

const Path = "/v1/graphql"

type request struct {
	Query         string          `json:"query"`
	Variables     json.RawMessage `json:"variables"`
	OperationName string          `json:"operationName"`
}

type gqlError struct {
	Message string `json:"message"`
}

type response struct {
	Data   any        `json:"data,omitempty"`
	Errors []gqlError `json:"errors,omitempty"`
}

// Server is a fake Hasura todos endpoint.
type Server struct {
	*httptest.Server

	// NewID assigns ids to created todos. Defaults to random UUIDs.
	NewID func() string

	mu      sync.Mutex
	todos   []model.Todo
	calls   []string
	headers http.Header
	fail    map[string]string
	canned  map[string]json.RawMessage
	gates   map[string]chan struct{}
}

// NewServer starts a Server holding seed and closes it when t finishes.
func NewServer(t testing.TB, seed ...model.Todo) *Server {
	t.Helper()
	s := &Server{
		NewID:  uuid.NewString,
		todos:  append([]model.Todo(nil), seed...),
		fail:   make(map[string]string),
		canned: make(map[string]json.RawMessage),
		gates:  make(map[string]chan struct{}),
	}
	r := mux.NewRouter()
	r.HandleFunc(Path, s.handle).Methods(http.MethodPost)
	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// Endpoint is the GraphQL URL of s.
func (s *Server) Endpoint() string { return s.URL + Path }

// Todos returns the server-side state.
func (s *Server) Todos() []model.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Todo(nil), s.todos...)
}

// Calls lists received operation names in order.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Header returns the headers of the last request.
func (s *Server) Header() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers.Clone()
}

// FailNext makes the next call of op answer with a GraphQL error.
func (s *Server) FailNext(op, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = message
}

// RespondNext makes the next call of op answer with data as the raw
// response data, bypassing the in-memory store.
func (s *Server) RespondNext(op, data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canned[op] = json.RawMessage(data)
}

// Hold blocks calls of op until the returned release func is called.
func (s *Server) Hold(op string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.gates[op] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, op)
			s.mu.Unlock()
			close(ch)
		})
	}
}

var opName = regexp.MustCompile(`^\s*(?:query|mutation)\s+(\w+)`)

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	op := req.OperationName
	if op == "" {
		if m := opName.FindStringSubmatch(req.Query); m != nil {
			op = m[1]
		}
	}

	s.mu.Lock()
	s.calls = append(s.calls, op)
	s.headers = r.Header.Clone()
	gate := s.gates[op]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	s.mu.Lock()
	msg, failing := s.fail[op]
	delete(s.fail, op)
	raw, canned := s.canned[op]
	delete(s.canned, op)
	s.mu.Unlock()
	if failing {
		writeJSON(w, response{Errors: []gqlError{{Message: msg}}})
		return
	}
	if canned {
		writeJSON(w, response{Data: raw})
		return
	}

	data, err := s.exec(op, req.Variables)
	if err != nil {
		writeJSON(w, response{Errors: []gqlError{{Message: err.Error()}}})
		return
	}
	writeJSON(w, response{Data: data})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
