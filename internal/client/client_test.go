package client_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/raysh454/asyncreq/internal/client"
	"github.com/raysh454/asyncreq/internal/dispatch"
	"github.com/raysh454/asyncreq/internal/request"
	"github.com/raysh454/asyncreq/internal/response"
	"github.com/raysh454/asyncreq/internal/testutil"
	"github.com/raysh454/asyncreq/internal/transport"
)

type invocation struct {
	success bool
	code    int
	body    string
	errMsg  string
	gid     uint64
}

// recorder collects continuation invocations. It is only touched on the loop
// goroutine, which in these tests is the test goroutine itself.
type recorder struct {
	calls []invocation
}

func (r *recorder) cont() dispatch.Continuation {
	return func(success bool, code int, body, errMsg string) {
		r.calls = append(r.calls, invocation{success, code, body, errMsg, testutil.GoroutineID()})
	}
}

type harness struct {
	loop   *dispatch.Loop
	client *client.Client
	logger *testutil.DummyLogger
}

func newHarness(t *testing.T, tr transport.Transport) *harness {
	t.Helper()
	logger := &testutil.DummyLogger{}
	loop := dispatch.NewLoop(logger)
	t.Cleanup(loop.Close)
	c, err := client.New(client.Options{
		Transport:  tr,
		Dispatcher: dispatch.NewDispatcher(loop, logger),
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	return &harness{loop: loop, client: c, logger: logger}
}

// runUntil drains the loop on the calling goroutine until n invocations were
// recorded or the deadline passes.
func (h *harness) runUntil(t *testing.T, rec *recorder, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for len(rec.calls) < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d invocations, got %d", n, len(rec.calls))
		}
		if h.loop.RunPending() == 0 {
			time.Sleep(2 * time.Millisecond)
		}
	}
}

// ─── End to end ────────────────────────────────────────────────────────

func TestClient_GET_EndToEnd(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	}))
	defer ts.Close()

	tr := transport.NewNetHTTPTransport(transport.DefaultConfig(), &testutil.DummyLogger{}, ts.Client())
	defer tr.Close()
	h := newHarness(t, tr)
	rec := &recorder{}

	id := h.client.MakeGetRequest(ts.URL, rec.cont())
	if id == "" {
		t.Error("expected a request id")
	}
	h.runUntil(t, rec, 1)

	c := rec.calls[0]
	if !c.success || c.code != 200 || c.body != "ok" || c.errMsg != "" {
		t.Errorf("unexpected invocation %+v", c)
	}
	if c.gid != testutil.GoroutineID() {
		t.Errorf("continuation ran on goroutine %d, want the loop goroutine", c.gid)
	}

	// No second invocation shows up later.
	time.Sleep(20 * time.Millisecond)
	h.loop.RunPending()
	if len(rec.calls) != 1 {
		t.Errorf("expected exactly one invocation, got %d", len(rec.calls))
	}
}

func TestClient_CompletionFromOtherGoroutineLandsOnLoop(t *testing.T) {
	t.Parallel()
	tr := &testutil.DummyTransport{Delay: 5 * time.Millisecond}
	h := newHarness(t, tr)
	rec := &recorder{}

	for i := 0; i < 10; i++ {
		h.client.MakeGetRequest("http://example.com/", rec.cont())
	}
	h.runUntil(t, rec, 10)
	tr.Close()

	loopID := testutil.GoroutineID()
	for _, c := range rec.calls {
		if c.gid != loopID {
			t.Fatalf("continuation ran on goroutine %d, want %d", c.gid, loopID)
		}
	}
	for _, gid := range tr.CompletionGoroutines {
		if gid == loopID {
			t.Fatal("dummy transport should complete on its own goroutines")
		}
	}
}

func TestClient_LoopStartedOnDedicatedGoroutine(t *testing.T) {
	t.Parallel()
	tr := &testutil.DummyTransport{}
	logger := &testutil.DummyLogger{}
	loop := dispatch.NewLoop(logger)
	loop.Start()
	defer loop.Close()
	c, err := client.New(client.Options{Transport: tr, Dispatcher: dispatch.NewDispatcher(loop, logger)})
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}

	var loopGID uint64
	ready := make(chan struct{})
	loop.Post(func() { loopGID = testutil.GoroutineID(); close(ready) })
	<-ready

	got := make(chan uint64, 1)
	c.MakeGetRequest("http://example.com", func(bool, int, string, string) {
		got <- testutil.GoroutineID()
	})
	select {
	case gid := <-got:
		if gid != loopGID {
			t.Errorf("continuation ran on %d, want loop goroutine %d", gid, loopGID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("continuation never ran")
	}
	tr.Close()
}

// ─── Validation ────────────────────────────────────────────────────────

func TestClient_InvalidURLNeverReachesTransport(t *testing.T) {
	t.Parallel()
	tr := &testutil.DummyTransport{}
	h := newHarness(t, tr)
	rec := &recorder{}

	for _, u := range []string{"", "example.com", "ftp://example.com", "file:///etc/passwd"} {
		h.client.MakeGetRequest(u, rec.cont())
	}
	h.runUntil(t, rec, 4)

	for _, c := range rec.calls {
		if c.success || c.code != 0 || c.errMsg == "" {
			t.Errorf("unexpected invocation %+v", c)
		}
	}
	if tr.StartCount() != 0 {
		t.Errorf("transport was engaged %d times", tr.StartCount())
	}
}

func TestClient_ValidationMessageVerbatim(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &testutil.DummyTransport{})
	rec := &recorder{}

	h.client.MakeRequestWithHeaders("http://example.com", "TRACE", "", nil, rec.cont())
	h.runUntil(t, rec, 1)

	if rec.calls[0].errMsg != "Unsupported HTTP method: TRACE" {
		t.Errorf("unexpected message %q", rec.calls[0].errMsg)
	}
}

// ─── Transport failures ────────────────────────────────────────────────

func TestClient_TransportStartFailure(t *testing.T) {
	t.Parallel()
	tr := &testutil.DummyTransport{Refuse: true}
	h := newHarness(t, tr)
	rec := &recorder{}

	h.client.MakeGetRequest("http://example.com", rec.cont())
	h.runUntil(t, rec, 1)

	c := rec.calls[0]
	if c.success || c.code != 0 || c.errMsg != "Failed to start HTTP request" {
		t.Errorf("unexpected invocation %+v", c)
	}
	if tr.StartCount() != 1 {
		t.Errorf("expected one Start call, got %d", tr.StartCount())
	}
}

func TestClient_TransportUnavailable(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	rec := &recorder{}

	h.client.MakePostRequest("http://example.com", "{}", "", rec.cont())
	h.runUntil(t, rec, 1)

	c := rec.calls[0]
	if c.success || c.code != 0 || c.errMsg != "HTTP transport not available" {
		t.Errorf("unexpected invocation %+v", c)
	}
}

func TestClient_NetworkFailure(t *testing.T) {
	t.Parallel()
	tr := &testutil.DummyTransport{Respond: func(req *transport.Request) transport.Outcome {
		return transport.Outcome{Succeeded: false, RequestURL: req.URL}
	}}
	h := newHarness(t, tr)
	rec := &recorder{}

	h.client.MakeGetRequest("http://down.example.com", rec.cont())
	h.runUntil(t, rec, 1)
	tr.Close()

	want := "Network error: Request failed to complete (URL: http://down.example.com)"
	if c := rec.calls[0]; c.success || c.code != 0 || c.errMsg != want {
		t.Errorf("unexpected invocation %+v", c)
	}
	if h.logger.WarnCount("request failed") != 1 {
		t.Errorf("expected failure to be logged once, got %d", h.logger.WarnCount("request failed"))
	}
}

func TestClient_EachFailureReportedOnce(t *testing.T) {
	t.Parallel()

	closed := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	downURL := closed.URL
	closed.Close()

	cases := []struct {
		name string
		tr   func(logger *testutil.DummyLogger) transport.Transport
		url  string
	}{
		{"network", func(logger *testutil.DummyLogger) transport.Transport {
			return transport.NewNetHTTPTransport(transport.DefaultConfig(), logger, nil)
		}, downURL},
		{"start refused", func(*testutil.DummyLogger) transport.Transport {
			return &testutil.DummyTransport{Refuse: true}
		}, "http://example.com"},
		{"unavailable", func(*testutil.DummyLogger) transport.Transport { return nil }, "http://example.com"},
		{"validation", func(*testutil.DummyLogger) transport.Transport {
			return &testutil.DummyTransport{}
		}, "example.com"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			logger := &testutil.DummyLogger{}
			loop := dispatch.NewLoop(logger)
			defer loop.Close()
			tr := tc.tr(logger)
			if tr != nil {
				defer tr.Close()
			}
			c, err := client.New(client.Options{
				Transport:  tr,
				Dispatcher: dispatch.NewDispatcher(loop, logger),
				Logger:     logger,
			})
			if err != nil {
				t.Fatalf("client.New: %v", err)
			}
			h := &harness{loop: loop, client: c, logger: logger}
			rec := &recorder{}

			c.MakeGetRequest(tc.url, rec.cont())
			h.runUntil(t, rec, 1)

			if rec.calls[0].success {
				t.Fatalf("expected a failure, got %+v", rec.calls[0])
			}
			if len(logger.Warns) != 1 || logger.WarnCount("request failed") != 1 {
				t.Errorf("expected a single failure warning, got %v", logger.Warns)
			}
			if len(logger.Errors) != 0 {
				t.Errorf("expected no error logs, got %v", logger.Errors)
			}
		})
	}
}

func TestClient_HTTPError(t *testing.T) {
	t.Parallel()
	tr := &testutil.DummyTransport{Respond: func(req *transport.Request) transport.Outcome {
		return transport.Outcome{Succeeded: true, StatusCode: 404, Body: "missing", RequestURL: req.URL}
	}}
	h := newHarness(t, tr)
	rec := &recorder{}

	h.client.MakeGetRequest("http://example.com/x", rec.cont())
	h.runUntil(t, rec, 1)
	tr.Close()

	if c := rec.calls[0]; c.success || c.code != 404 || c.body != "missing" || c.errMsg != "HTTP Error 404: Not Found" {
		t.Errorf("unexpected invocation %+v", c)
	}
}

// ─── Request shaping ───────────────────────────────────────────────────

func TestClient_PostDefaultsContentType(t *testing.T) {
	t.Parallel()
	tr := &testutil.DummyTransport{}
	h := newHarness(t, tr)
	rec := &recorder{}

	h.client.MakePostRequest("http://example.com", "{}", "", rec.cont())
	h.client.MakePostRequest("http://example.com", "a=b", "application/x-www-form-urlencoded", rec.cont())
	h.runUntil(t, rec, 2)
	tr.Close()

	seen := map[string]bool{}
	for _, req := range tr.Requests {
		v, _ := req.Headers.Get("Content-Type")
		seen[v] = true
		if req.Method != "POST" {
			t.Errorf("expected POST, got %q", req.Method)
		}
	}
	if !seen["application/json"] || !seen["application/x-www-form-urlencoded"] {
		t.Errorf("unexpected content types %v", seen)
	}
}

func TestClient_RequestWithHeaders(t *testing.T) {
	t.Parallel()
	tr := &testutil.DummyTransport{}
	h := newHarness(t, tr)
	rec := &recorder{}

	h.client.MakeRequestWithHeaders("https://api.example.com/items/1", "delete", "", map[string]string{
		"X-Request-Source": "test",
	}, rec.cont())
	h.runUntil(t, rec, 1)
	tr.Close()

	req := tr.LastRequest()
	if req.Method != "DELETE" {
		t.Errorf("expected DELETE, got %q", req.Method)
	}
	if v, _ := req.Headers.Get("X-Request-Source"); v != "test" {
		t.Errorf("caller header missing: %v", req.Headers)
	}
	if v, _ := req.Headers.Get("User-Agent"); v != request.DefaultUserAgent {
		t.Errorf("default user agent missing: %v", req.Headers)
	}
	if req.Timeout != request.DefaultTimeout || req.ID == "" {
		t.Errorf("unexpected request %+v", req)
	}
}

// ─── Continuations and observers ───────────────────────────────────────

func TestClient_UnboundContinuation(t *testing.T) {
	t.Parallel()
	tr := &testutil.DummyTransport{}
	h := newHarness(t, tr)

	observed := make(chan response.Result, 1)
	h.client.AddObserver(client.ObserverFunc(func(_ string, _ request.Spec, r response.Result) {
		observed <- r
	}))

	h.client.MakeGetRequest("http://example.com", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		h.loop.RunPending()
		select {
		case r := <-observed:
			if !r.Success {
				t.Errorf("expected success, got %+v", r)
			}
			if h.logger.WarnCount("response received but no callback was bound") != 1 {
				t.Error("expected unbound continuation to be logged")
			}
			tr.Close()
			return
		case <-ctx.Done():
			t.Fatal("observer never ran")
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestClient_SubmitFullResult(t *testing.T) {
	t.Parallel()
	tr := &testutil.DummyTransport{Respond: func(req *transport.Request) transport.Outcome {
		return transport.Outcome{
			Succeeded:      true,
			StatusCode:     201,
			Body:           "made",
			HeaderLines:    []string{"Location: /items/9", "Location: /ignored"},
			ElapsedSeconds: 0.5,
			RequestURL:     req.URL,
		}
	}}
	h := newHarness(t, tr)

	var (
		mu  sync.Mutex
		got []response.Result
	)
	var observedID string
	h.client.AddObserver(client.ObserverFunc(func(id string, spec request.Spec, r response.Result) {
		observedID = id
		if spec.Method != "put" {
			t.Errorf("observer got spec %+v", spec)
		}
	}))
	id := h.client.Submit(request.Spec{URL: "http://example.com/items", Method: "put", Body: "x"}, func(r response.Result) {
		mu.Lock()
		got = append(got, r)
		mu.Unlock()
	})

	deadline := time.Now().Add(5 * time.Second)
	for {
		h.loop.RunPending()
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("handler never ran")
		}
		time.Sleep(2 * time.Millisecond)
	}
	tr.Close()

	r := got[0]
	if !r.Success || r.StatusCode != 201 || r.Headers["Location"] != "/items/9" || r.ElapsedSeconds != 0.5 {
		t.Errorf("unexpected result %+v", r)
	}
	if observedID != id {
		t.Errorf("observer saw id %q, want %q", observedID, id)
	}
}

func TestClient_NewRequiresDispatcher(t *testing.T) {
	t.Parallel()
	if _, err := client.New(client.Options{}); err == nil {
		t.Fatal("expected error without dispatcher")
	}
}

func TestUtilities_ArePure(t *testing.T) {
	t.Parallel()
	for i := 0; i < 3; i++ {
		if !client.IsSuccessStatus(204) || client.IsSuccessStatus(300) {
			t.Fatal("IsSuccessStatus mismatch")
		}
		if client.DescribeStatus(404) != "Not Found" || client.DescribeStatus(418) != "HTTP 418" {
			t.Fatal("DescribeStatus mismatch")
		}
		if client.ExtractDomain("https://api.example.com/v1/data?x=1") != "api.example.com" {
			t.Fatal("ExtractDomain mismatch")
		}
		if !client.IsValidURL("http://x.com") || client.IsValidURL("x.com") {
			t.Fatal("IsValidURL mismatch")
		}
	}
}
