package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/raysh454/asyncreq/internal/client"
	"github.com/raysh454/asyncreq/internal/history"
	"github.com/raysh454/asyncreq/internal/logging"
	"github.com/raysh454/asyncreq/internal/request"
	"github.com/raysh454/asyncreq/internal/response"
	"github.com/raysh454/asyncreq/internal/transport"
)

const defaultListLimit = 50

// Server is the HTTP + WebSocket API surface over a Client.
type Server struct {
	cfg      Config
	client   *client.Client
	history  *history.Store
	hub      *hub
	router   chi.Router
	upgrader websocket.Upgrader
	logger   logging.Logger
}

// NewServer builds the API around c. store may be nil, in which case the
// history endpoints answer 503.
func NewServer(cfg Config, c *client.Client, store *history.Store) (*Server, error) {
	if c == nil {
		return nil, errors.New("server: client is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("Server")
	}

	s := &Server{
		cfg:     cfg,
		client:  c,
		history: store,
		hub:     newHub(),
		router:  chi.NewRouter(),
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	c.AddObserver(s.hub)

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	r.Options("/requests", s.optionsHandler("GET, POST"))
	r.Options("/requests/{id}", s.optionsHandler("GET"))
	r.Options("/status/{code}", s.optionsHandler("GET"))
	r.Options("/domain", s.optionsHandler("GET"))

	r.Post("/requests", s.handleSubmit)
	r.Get("/requests", s.handleListRequests)
	r.Get("/requests/{id}", s.handleGetRequest)

	r.Get("/status/{code}", s.handleStatus)
	r.Get("/domain", s.handleDomain)

	r.Get("/ws/results", s.handleResultsWS)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && r.Method == http.MethodPost {
		if bodyBytes, err := io.ReadAll(r.Body); err == nil {
			fields = append(fields, logging.Field{Key: "body", Value: string(bodyBytes)})
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// Close disconnects websocket subscribers.
func (s *Server) Close() {
	s.hub.closeAll()
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket streams
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// --- HTTP handlers ---

// handleSubmit godoc
// @Summary Submit a request
// @Description Starts an asynchronous request. The result is recorded in history and pushed on /ws/results.
// @Tags requests
// @Accept json
// @Produce json
// @Param request body SubmitRequest true "Request to perform"
// @Success 202 {object} SubmitResponse
// @Failure 400 {object} ErrorResponse
// @Router /requests [post]
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	spec := request.Spec{
		URL:     req.URL,
		Method:  req.Method,
		Body:    req.Body,
		Headers: transport.HeadersFromMap(req.Headers),
	}

	logger := s.logger
	id := s.client.Submit(spec, func(res response.Result) {
		logger.Debug("api request finished",
			logging.Field{Key: "url", Value: res.URL},
			logging.Field{Key: "success", Value: res.Success})
	})

	s.logger.Info("accepted request", logging.Field{Key: "request_id", Value: id})
	writeJSON(w, http.StatusAccepted, SubmitResponse{ID: id})
}

// handleListRequests godoc
// @Summary List finished requests
// @Tags requests
// @Produce json
// @Param limit query int false "Maximum entries" default(50)
// @Param domain query string false "Filter by domain"
// @Success 200 {array} history.Entry
// @Failure 503 {object} ErrorResponse
// @Router /requests [get]
func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history disabled")
		return
	}

	limit := defaultListLimit
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v > 0 {
			limit = v
		}
	}

	var (
		entries []history.Entry
		err     error
	)
	if domain := r.URL.Query().Get("domain"); domain != "" {
		entries, err = s.history.ListByDomain(r.Context(), domain, limit)
	} else {
		entries, err = s.history.List(r.Context(), limit)
	}
	if err != nil {
		s.logger.Warn("listing history", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleGetRequest godoc
// @Summary Get a finished request
// @Tags requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} history.Entry
// @Failure 404 {object} ErrorResponse
// @Router /requests/{id} [get]
func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history disabled")
		return
	}

	id := chi.URLParam(r, "id")
	entry, err := s.history.Get(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleStatus godoc
// @Summary Describe an HTTP status code
// @Tags utilities
// @Produce json
// @Param code path int true "Status code"
// @Success 200 {object} StatusResponse
// @Failure 400 {object} ErrorResponse
// @Router /status/{code} [get]
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "status code must be an integer")
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Code:        code,
		Success:     client.IsSuccessStatus(code),
		Description: client.DescribeStatus(code),
	})
}

// handleDomain godoc
// @Summary Extract the domain of a URL
// @Tags utilities
// @Produce json
// @Param url query string true "URL"
// @Success 200 {object} DomainResponse
// @Router /domain [get]
func (s *Server) handleDomain(w http.ResponseWriter, r *http.Request) {
	u := r.URL.Query().Get("url")
	writeJSON(w, http.StatusOK, DomainResponse{
		URL:    u,
		Domain: client.ExtractDomain(u),
		Valid:  client.IsValidURL(u),
	})
}

// WebSockets

func (s *Server) handleResultsWS(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the handshake completes so no event dispatched after
	// the client sees the upgrade is missed.
	events := s.hub.subscribe()
	defer s.hub.unsubscribe(events)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	// The read side only exists to notice the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.logger.Info("results subscriber connected", logging.Field{Key: "remote", Value: r.RemoteAddr})
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
