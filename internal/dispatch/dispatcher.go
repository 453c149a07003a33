package dispatch

import (
	"fmt"

	"github.com/raysh454/asyncreq/internal/logging"
	"github.com/raysh454/asyncreq/internal/response"
)

// Continuation is the caller's callback for one request.
type Continuation func(success bool, statusCode int, body, errorMessage string)

// Handler receives the full normalized result, including headers and timing.
type Handler func(response.Result)

// Handler adapts c to a Handler. A nil Continuation yields a nil Handler.
func (c Continuation) Handler() Handler {
	if c == nil {
		return nil
	}
	return func(r response.Result) {
		c(r.Success, r.StatusCode, r.Body, r.ErrorMessage)
	}
}

// Dispatcher hands finished results to the loop so that handlers always run
// on the loop's goroutine.
type Dispatcher struct {
	loop   *Loop
	logger logging.Logger
}

func NewDispatcher(loop *Loop, logger logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Dispatcher{
		loop:   loop,
		logger: logger.With(logging.Field{Key: "component", Value: "dispatch"}),
	}
}

// Loop returns the execution loop handlers run on.
func (d *Dispatcher) Loop() *Loop {
	return d.loop
}

// Deliver schedules h(result) on the loop. Failed results are logged once
// before scheduling. hooks run on the loop ahead of h, in order, whether or
// not h is bound. A nil h is logged on the loop and otherwise ignored.
// Deliver returns false if the loop refused the task; the result is then
// logged and dropped.
func (d *Dispatcher) Deliver(id string, result response.Result, h Handler, hooks ...func(response.Result)) bool {
	if !result.Success {
		d.logger.Warn("request failed",
			logging.Field{Key: "request_id", Value: id},
			logging.Field{Key: "kind", Value: string(result.Kind)},
			logging.Field{Key: "status_code", Value: result.StatusCode},
			logging.Field{Key: "error", Value: result.ErrorMessage})
	}

	posted := d.loop.Post(func() {
		for _, hook := range hooks {
			d.runHook(id, hook, result)
		}
		if h == nil {
			d.logger.Warn("response received but no callback was bound",
				logging.Field{Key: "request_id", Value: id},
				logging.Field{Key: "status_code", Value: result.StatusCode})
			return
		}
		h(result)
	})
	if !posted {
		d.logger.Error("execution loop closed, dropping result",
			logging.Field{Key: "request_id", Value: id},
			logging.Field{Key: "success", Value: result.Success})
	}
	return posted
}

// runHook isolates a panicking hook so the handler still runs.
func (d *Dispatcher) runHook(id string, hook func(response.Result), result response.Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("result hook panicked",
				logging.Field{Key: "request_id", Value: id},
				logging.Field{Key: "panic", Value: fmt.Sprint(r)})
		}
	}()
	hook(result)
}
