package demoserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// DemoServer serves a handful of predictable endpoints to point the client at:
//
//	GET  /ok              200 "ok"
//	ANY  /status/{code}   responds with code and "status <code>"
//	ANY  /echo            JSON echo of method, headers and body
//	GET  /headers         sets duplicate and custom response headers
//	GET  /slow?ms=N       waits N milliseconds, then 200
type DemoServer struct {
	cfg    Config
	router chi.Router
}

// NewDemoServer creates a new demo server instance.
func NewDemoServer(cfg Config) *DemoServer {
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig().MaxDelay
	}
	s := &DemoServer{cfg: cfg, router: chi.NewRouter()}
	s.routes()
	return s
}

func (s *DemoServer) routes() {
	r := s.router
	r.Get("/ok", s.handleOK)
	r.HandleFunc("/status/{code}", s.handleStatus)
	r.HandleFunc("/echo", s.handleEcho)
	r.Get("/headers", s.handleHeaders)
	r.Get("/slow", s.handleSlow)
}

// ServeHTTP implements http.Handler.
func (s *DemoServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start listens on the configured port and blocks.
func (s *DemoServer) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	fmt.Printf("Demo server starting on http://localhost%s\n", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *DemoServer) handleOK(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "ok")
}

func (s *DemoServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(chi.URLParam(r, "code"))
	if err != nil || code < 100 || code > 999 {
		http.Error(w, "invalid status code", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(code)
	fmt.Fprintf(w, "status %d", code)
}

type echoPayload struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Query   string            `json:"query,omitempty"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

func (s *DemoServer) handleEcho(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}

	names := make([]string, 0, len(r.Header))
	for k := range r.Header {
		names = append(names, k)
	}
	sort.Strings(names)
	headers := make(map[string]string, len(names))
	for _, k := range names {
		headers[k] = r.Header.Get(k)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(echoPayload{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   r.URL.RawQuery,
		Headers: headers,
		Body:    string(body),
	})
}

func (s *DemoServer) handleHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("X-Demo", "first")
	w.Header().Add("X-Demo", "second")
	w.Header().Set("X-Request-Method", r.Method)
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "headers")
}

func (s *DemoServer) handleSlow(w http.ResponseWriter, r *http.Request) {
	ms, _ := strconv.Atoi(r.URL.Query().Get("ms"))
	delay := time.Duration(ms) * time.Millisecond
	if delay > s.cfg.MaxDelay {
		delay = s.cfg.MaxDelay
	}
	select {
	case <-time.After(delay):
	case <-r.Context().Done():
		return
	}
	fmt.Fprint(w, "slow")
}
