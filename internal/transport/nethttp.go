package transport

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/raysh454/asyncreq/internal/logging"
)

// NetHTTPTransport is the net/http backed Transport. Each accepted request runs
// on its own goroutine; at most MaxConcurrency of them talk to the network at
// a time.
type NetHTTPTransport struct {
	client *http.Client
	logger logging.Logger

	sem    chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewNetHTTPTransport wraps httpClient. If httpClient is nil a client that does
// not follow redirects is used. Request timeouts come from Request.Timeout.
func NewNetHTTPTransport(cfg Config, logger logging.Logger, httpClient *http.Client) *NetHTTPTransport {
	if logger == nil {
		logger = logging.Nop()
	}
	componentLogger := logger.With(logging.Field{Key: "backend", Value: string(BackendNetHTTP)})

	if httpClient == nil {
		httpClient = &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	limit := cfg.MaxConcurrency
	if limit <= 0 {
		limit = 8
	}

	ctx, cancel := context.WithCancel(context.Background())

	componentLogger.Debug("created nethttp transport",
		logging.Field{Key: "max_concurrency", Value: limit})

	return &NetHTTPTransport{
		client: httpClient,
		logger: componentLogger,
		sem:    make(chan struct{}, limit),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start implements Transport.
func (t *NetHTTPTransport) Start(req *Request, onComplete func(Outcome)) bool {
	if req == nil || onComplete == nil {
		return false
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.logger.Debug("start after close", logging.Field{Key: "url", Value: req.URL})
		return false
	}
	t.wg.Add(1)
	t.mu.Unlock()

	httpReq, err := t.newHTTPRequest(req)
	if err != nil {
		t.wg.Done()
		t.logger.Debug("could not construct http request",
			logging.Field{Key: "url", Value: req.URL},
			logging.Field{Key: "error", Value: err})
		return false
	}

	go func() {
		defer t.wg.Done()
		onComplete(t.execute(req, httpReq))
	}()
	return true
}

func (t *NetHTTPTransport) newHTTPRequest(req *Request) (*http.Request, error) {
	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	ctx := t.ctx
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for _, h := range req.Headers {
		if strings.EqualFold(h.Name, "Host") {
			httpReq.Host = h.Value
			continue
		}
		httpReq.Header[h.Name] = append(httpReq.Header[h.Name], h.Value)
	}
	return httpReq, nil
}

func (t *NetHTTPTransport) execute(req *Request, httpReq *http.Request) Outcome {
	select {
	case t.sem <- struct{}{}:
	case <-t.ctx.Done():
		return Outcome{RequestURL: req.URL, Err: ErrClosed}
	}
	defer func() { <-t.sem }()

	ctx := httpReq.Context()
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
		httpReq = httpReq.WithContext(ctx)
	}

	t.logger.Debug("sending http request",
		logging.Field{Key: "request_id", Value: req.ID},
		logging.Field{Key: "method", Value: req.Method},
		logging.Field{Key: "url", Value: req.URL})

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		t.logger.Debug("http request failed",
			logging.Field{Key: "request_id", Value: req.ID},
			logging.Field{Key: "url", Value: req.URL},
			logging.Field{Key: "error", Value: err})
		return Outcome{
			RequestURL:     req.URL,
			ElapsedSeconds: time.Since(start).Seconds(),
			Err:            err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.logger.Debug("failed to read response body",
			logging.Field{Key: "request_id", Value: req.ID},
			logging.Field{Key: "url", Value: req.URL},
			logging.Field{Key: "error", Value: err})
		return Outcome{
			StatusCode:     resp.StatusCode,
			RequestURL:     req.URL,
			ElapsedSeconds: time.Since(start).Seconds(),
			Err:            err,
		}
	}

	return Outcome{
		Succeeded:      true,
		StatusCode:     resp.StatusCode,
		HeaderLines:    HeaderLines(resp.Header),
		Body:           string(body),
		ElapsedSeconds: time.Since(start).Seconds(),
		RequestURL:     req.URL,
	}
}

// Close rejects further requests, aborts in-flight ones and waits for their
// completions to be delivered.
func (t *NetHTTPTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()
	t.client.CloseIdleConnections()
	t.logger.Info("closed nethttp transport")
	return nil
}

// HTTPClient returns the underlying *http.Client.
func (t *NetHTTPTransport) HTTPClient() *http.Client {
	return t.client
}
