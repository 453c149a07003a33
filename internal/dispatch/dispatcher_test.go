package dispatch_test

import (
	"sync"
	"testing"

	"github.com/raysh454/asyncreq/internal/dispatch"
	"github.com/raysh454/asyncreq/internal/response"
	"github.com/raysh454/asyncreq/internal/testutil"
)

func TestDispatcher_DeliversOnLoopGoroutine(t *testing.T) {
	loop := dispatch.NewLoop(&testutil.DummyLogger{})
	defer loop.Close()
	d := dispatch.NewDispatcher(loop, &testutil.DummyLogger{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.Deliver("req-1", response.Result{Success: true, StatusCode: 200, Body: "ok"}, nil)
	}()
	wg.Wait()

	type call struct {
		success bool
		code    int
		body    string
		errMsg  string
		gid     uint64
	}
	var calls []call
	cont := dispatch.Continuation(func(success bool, code int, body, errMsg string) {
		calls = append(calls, call{success, code, body, errMsg, testutil.GoroutineID()})
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.Deliver("req-2", response.Result{Success: true, StatusCode: 200, Body: "ok"}, cont.Handler())
	}()
	wg.Wait()

	if len(calls) != 0 {
		t.Fatal("continuation must not run before the loop drains")
	}
	loop.RunPending()

	if len(calls) != 1 {
		t.Fatalf("expected exactly one invocation, got %d", len(calls))
	}
	c := calls[0]
	if !c.success || c.code != 200 || c.body != "ok" || c.errMsg != "" {
		t.Errorf("unexpected invocation %+v", c)
	}
	if c.gid != testutil.GoroutineID() {
		t.Errorf("continuation ran on goroutine %d, expected the draining goroutine", c.gid)
	}
}

func TestDispatcher_UnboundContinuationIsLogged(t *testing.T) {
	logger := &testutil.DummyLogger{}
	loop := dispatch.NewLoop(logger)
	defer loop.Close()
	d := dispatch.NewDispatcher(loop, logger)

	if !d.Deliver("req-1", response.Result{Success: true, StatusCode: 200}, nil) {
		t.Fatal("Deliver refused")
	}
	var nilCont dispatch.Continuation
	d.Deliver("req-2", response.Result{Success: true, StatusCode: 200}, nilCont.Handler())
	loop.RunPending()

	if got := logger.WarnCount("response received but no callback was bound"); got != 2 {
		t.Errorf("expected 2 unbound warnings, got %d", got)
	}
}

func TestDispatcher_LogsFailureOnceBeforeDelivery(t *testing.T) {
	logger := &testutil.DummyLogger{}
	loop := dispatch.NewLoop(logger)
	defer loop.Close()
	d := dispatch.NewDispatcher(loop, logger)

	var warnsAtCall int
	d.Deliver("req-1", response.Failure(response.KindValidation, "URL cannot be empty", ""), func(response.Result) {
		warnsAtCall = logger.WarnCount("request failed")
	})
	loop.RunPending()

	if warnsAtCall != 1 {
		t.Errorf("expected failure logged once before the handler ran, got %d", warnsAtCall)
	}
}

func TestDispatcher_ClosedLoopDropsAndLogs(t *testing.T) {
	logger := &testutil.DummyLogger{}
	loop := dispatch.NewLoop(logger)
	loop.Close()
	d := dispatch.NewDispatcher(loop, logger)

	called := false
	if d.Deliver("req-1", response.Result{Success: true, StatusCode: 200}, func(response.Result) { called = true }) {
		t.Fatal("expected Deliver to report refusal")
	}
	loop.RunPending()
	if called {
		t.Error("handler must not run after the loop closed")
	}
	if len(logger.Errors) != 1 {
		t.Errorf("expected one drop error, got %v", logger.Errors)
	}
}

func TestDispatcher_PanickingHookStillRunsHandler(t *testing.T) {
	logger := &testutil.DummyLogger{}
	loop := dispatch.NewLoop(logger)
	defer loop.Close()
	d := dispatch.NewDispatcher(loop, logger)

	var order []string
	d.Deliver("req-1", response.Result{Success: true, StatusCode: 200},
		func(response.Result) { order = append(order, "handler") },
		func(response.Result) { panic("observer broke") },
		func(response.Result) { order = append(order, "hook") },
	)
	loop.RunPending()

	if len(order) != 2 || order[0] != "hook" || order[1] != "handler" {
		t.Fatalf("expected hook then handler, got %v", order)
	}
	if len(logger.Errors) != 1 {
		t.Errorf("expected the panic to be logged once, got %v", logger.Errors)
	}
}
