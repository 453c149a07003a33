package transport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/raysh454/asyncreq/internal/logging"
)

// ChromedpTransport renders pages in a headless browser. Only GET is
// supported; Start refuses every other method.
type ChromedpTransport struct {
	idleAfter time.Duration
	logger    logging.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	sem    chan struct{}
}

// NewChromedpTransport prepares a browser allocator. The browser itself is
// launched lazily by the first request.
func NewChromedpTransport(cfg Config, logger logging.Logger) (*ChromedpTransport, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	idleAfter := cfg.IdleAfter
	if idleAfter <= 0 {
		idleAfter = 2 * time.Second
	}
	limit := cfg.MaxConcurrency
	if limit <= 0 {
		limit = 2
	}

	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	componentLogger := logger.With(logging.Field{Key: "backend", Value: string(BackendChromedp)})
	componentLogger.Debug("created chromedp transport",
		logging.Field{Key: "idle_after", Value: idleAfter.String()})

	return &ChromedpTransport{
		idleAfter:   idleAfter,
		logger:      componentLogger,
		allocCtx:    allocCtx,
		allocCancel: cancel,
		sem:         make(chan struct{}, limit),
	}, nil
}

// Start implements Transport.
func (c *ChromedpTransport) Start(req *Request, onComplete func(Outcome)) bool {
	if req == nil || onComplete == nil {
		return false
	}
	if !strings.EqualFold(req.Method, "GET") {
		c.logger.Debug("method not supported by chromedp backend",
			logging.Field{Key: "method", Value: req.Method})
		return false
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		onComplete(c.render(req))
	}()
	return true
}

// documentResponse captures the main document's response as seen by the browser.
type documentResponse struct {
	once    sync.Once
	status  int
	headers []string
}

func (c *ChromedpTransport) render(req *Request) Outcome {
	select {
	case c.sem <- struct{}{}:
	case <-c.allocCtx.Done():
		return Outcome{RequestURL: req.URL, Err: ErrClosed}
	}
	defer func() { <-c.sem }()

	tabCtx, cancelTab := chromedp.NewContext(c.allocCtx)
	defer cancelTab()
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		tabCtx, cancel = context.WithTimeout(tabCtx, req.Timeout)
		defer cancel()
	}

	doc := &documentResponse{}
	idle := waitNetworkIdle(tabCtx, c.idleAfter, doc)

	actions := []chromedp.Action{network.Enable()}
	if len(req.Headers) > 0 {
		extra := make(network.Headers, len(req.Headers))
		for _, h := range req.Headers {
			extra[h.Name] = h.Value
		}
		actions = append(actions, network.SetExtraHTTPHeaders(extra))
	}
	actions = append(actions, chromedp.Navigate(req.URL))

	start := time.Now()
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return c.failed(req, start, err)
	}

	select {
	case <-idle:
	case <-tabCtx.Done():
		return c.failed(req, start, tabCtx.Err())
	}

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return c.failed(req, start, err)
	}

	// Closes doc to late events and publishes what the listener recorded.
	doc.once.Do(func() {})
	status := doc.status
	if status == 0 {
		return c.failed(req, start, errors.New("no document response observed"))
	}

	return Outcome{
		Succeeded:      true,
		StatusCode:     status,
		HeaderLines:    doc.headers,
		Body:           html,
		ElapsedSeconds: time.Since(start).Seconds(),
		RequestURL:     req.URL,
	}
}

func (c *ChromedpTransport) failed(req *Request, start time.Time, err error) Outcome {
	c.logger.Debug("chromedp request failed",
		logging.Field{Key: "request_id", Value: req.ID},
		logging.Field{Key: "url", Value: req.URL},
		logging.Field{Key: "error", Value: err})
	return Outcome{
		RequestURL:     req.URL,
		ElapsedSeconds: time.Since(start).Seconds(),
		Err:            err,
	}
}

// waitNetworkIdle returns a channel that is closed once no requests have been
// in flight for idleAfter. It also records the first document response into doc.
func waitNetworkIdle(ctx context.Context, idleAfter time.Duration, doc *documentResponse) <-chan struct{} {
	idleChan := make(chan struct{})
	var activeReqs int32
	var timer *time.Timer
	var timerMutex sync.Mutex
	var once sync.Once

	startTimer := func() {
		timerMutex.Lock()
		defer timerMutex.Unlock()

		if timer != nil {
			timer.Stop()
		}

		timer = time.AfterFunc(idleAfter, func() {
			if atomic.LoadInt32(&activeReqs) == 0 {
				once.Do(func() {
					close(idleChan)
				})
			}
		})
	}

	chromedp.ListenTarget(ctx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			atomic.AddInt32(&activeReqs, 1)
		case *network.EventResponseReceived:
			if e.Type == network.ResourceTypeDocument && e.Response != nil {
				doc.once.Do(func() {
					doc.status = int(e.Response.Status)
					doc.headers = chromeHeaderLines(e.Response.Headers)
				})
			}
		case *network.EventLoadingFinished, *network.EventLoadingFailed:
			if atomic.AddInt32(&activeReqs, -1) <= 0 {
				startTimer()
			}
		}
	})

	return idleChan
}

// chromeHeaderLines flattens DevTools headers. Chrome joins repeated headers
// with newlines.
func chromeHeaderLines(h network.Headers) []string {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)
	var lines []string
	for _, k := range names {
		for _, v := range strings.Split(fmt.Sprint(h[k]), "\n") {
			lines = append(lines, k+": "+v)
		}
	}
	return lines
}

// Close stops the browser after in-flight renders finish.
func (c *ChromedpTransport) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.wg.Wait()
	c.allocCancel()
	c.logger.Info("closed chromedp transport")
	return nil
}
