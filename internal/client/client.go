package client

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/raysh454/asyncreq/internal/dispatch"
	"github.com/raysh454/asyncreq/internal/logging"
	"github.com/raysh454/asyncreq/internal/request"
	"github.com/raysh454/asyncreq/internal/response"
	"github.com/raysh454/asyncreq/internal/transport"
)

const (
	msgTransportUnavailable = "HTTP transport not available"
	msgTransportStart       = "Failed to start HTTP request"
)

// Observer is notified of every finished request on the execution loop,
// before the caller's continuation runs.
type Observer interface {
	Observe(id string, spec request.Spec, result response.Result)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(id string, spec request.Spec, result response.Result)

func (f ObserverFunc) Observe(id string, spec request.Spec, result response.Result) {
	f(id, spec, result)
}

// Options configures a Client. Dispatcher is required; a nil Transport makes
// every request fail as transport-unavailable.
type Options struct {
	Transport  transport.Transport
	Dispatcher *dispatch.Dispatcher
	Builder    *request.Builder
	Logger     logging.Logger
	Observers  []Observer
}

// Client issues requests without blocking and reports each result exactly
// once through the dispatcher's execution loop.
type Client struct {
	transport  transport.Transport
	dispatcher *dispatch.Dispatcher
	builder    *request.Builder
	logger     logging.Logger

	mu        sync.RWMutex
	observers []Observer
}

func New(opts Options) (*Client, error) {
	if opts.Dispatcher == nil {
		return nil, errors.New("client: dispatcher is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	builder := opts.Builder
	if builder == nil {
		builder = request.DefaultBuilder()
	}
	return &Client{
		transport:  opts.Transport,
		dispatcher: opts.Dispatcher,
		builder:    builder,
		logger:     logger.With(logging.Field{Key: "component", Value: "client"}),
		observers:  append([]Observer(nil), opts.Observers...),
	}, nil
}

// AddObserver registers o for all subsequently finished requests.
func (c *Client) AddObserver(o Observer) {
	if o == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// MakeGetRequest issues a GET for url.
func (c *Client) MakeGetRequest(url string, cont dispatch.Continuation) string {
	return c.Submit(request.Spec{URL: url, Method: string(request.MethodGet)}, cont.Handler())
}

// MakePostRequest issues a POST with body. An empty contentType means
// application/json.
func (c *Client) MakePostRequest(url, body, contentType string, cont dispatch.Continuation) string {
	if contentType == "" {
		contentType = request.DefaultContentType
	}
	return c.Submit(request.Spec{
		URL:     url,
		Method:  string(request.MethodPost),
		Body:    body,
		Headers: transport.Headers{{Name: "Content-Type", Value: contentType}},
	}, cont.Handler())
}

// MakeRequestWithHeaders issues a request with an arbitrary method and
// caller-supplied headers. Map headers are applied in name order.
func (c *Client) MakeRequestWithHeaders(url, method, body string, headers map[string]string, cont dispatch.Continuation) string {
	return c.Submit(request.Spec{
		URL:     url,
		Method:  method,
		Body:    body,
		Headers: transport.HeadersFromMap(headers),
	}, cont.Handler())
}

// Submit runs spec through the pipeline and returns the request id. h runs
// exactly once on the execution loop; a nil h is logged instead.
func (c *Client) Submit(spec request.Spec, h dispatch.Handler) string {
	spec.Headers = spec.Headers.Clone()
	id := uuid.NewString()
	p := &pipeline{
		id:      id,
		spec:    spec,
		handler: h,
		client:  c,
		logger:  c.logger.With(logging.Field{Key: "request_id", Value: id}),
	}
	p.run()
	return p.id
}

func (c *Client) snapshotObservers() []Observer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Observer(nil), c.observers...)
}

// IsSuccessStatus reports whether code is in the 2xx range.
func IsSuccessStatus(code int) bool { return response.IsSuccessStatus(code) }

// DescribeStatus returns a human-readable description of code.
func DescribeStatus(code int) string { return response.DescribeStatus(code) }

// ExtractDomain returns the host part of url.
func ExtractDomain(url string) string { return request.ExtractDomain(url) }

// IsValidURL reports whether url would pass request validation.
func IsValidURL(url string) bool { return request.IsValidURL(url) }
