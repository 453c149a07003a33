// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/raysh454/asyncreq/internal/logging"
	"github.com/raysh454/asyncreq/internal/transport"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// WarnCount returns how many warnings were recorded with msg.
func (l *DummyLogger) WarnCount(msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, w := range l.Warns {
		if w == msg {
			n++
		}
	}
	return n
}

// ─── Transport ─────────────────────────────────────────────────────────

// DummyTransport implements transport.Transport. Accepted requests complete
// on a fresh goroutine after Delay with the Outcome produced by Respond
// (default: 200 "ok").
// Set Refuse to make Start return false.
type DummyTransport struct {
	Delay   time.Duration
	Refuse  bool
	Respond func(req *transport.Request) transport.Outcome

	mu       sync.Mutex
	Requests []*transport.Request
	// CompletionGoroutines records the goroutine each completion fired on.
	CompletionGoroutines []uint64
	wg                   sync.WaitGroup
}

func (d *DummyTransport) Start(req *transport.Request, onComplete func(transport.Outcome)) bool {
	d.mu.Lock()
	d.Requests = append(d.Requests, req)
	d.mu.Unlock()
	if d.Refuse {
		return false
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if d.Delay > 0 {
			time.Sleep(d.Delay)
		}
		var o transport.Outcome
		if d.Respond != nil {
			o = d.Respond(req)
		} else {
			o = transport.Outcome{
				Succeeded:   true,
				StatusCode:  200,
				Body:        "ok",
				HeaderLines: []string{"Content-Type: text/plain"},
				RequestURL:  req.URL,
			}
		}
		d.mu.Lock()
		d.CompletionGoroutines = append(d.CompletionGoroutines, GoroutineID())
		d.mu.Unlock()
		onComplete(o)
	}()
	return true
}

func (d *DummyTransport) Close() error {
	d.wg.Wait()
	return nil
}

// StartCount returns the number of Start calls seen so far.
func (d *DummyTransport) StartCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Requests)
}

// LastRequest returns the most recent request passed to Start, or nil.
func (d *DummyTransport) LastRequest() *transport.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Requests) == 0 {
		return nil
	}
	return d.Requests[len(d.Requests)-1]
}

// ─── Goroutines ────────────────────────────────────────────────────────

// GoroutineID parses the current goroutine's id out of its stack header.
// Only meant for asserting which goroutine ran a callback in tests.
func GoroutineID() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}
	id, _ := strconv.ParseUint(string(buf), 10, 64)
	return id
}
