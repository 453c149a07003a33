package client

import (
	"errors"
	"sync"

	"github.com/raysh454/asyncreq/internal/dispatch"
	"github.com/raysh454/asyncreq/internal/logging"
	"github.com/raysh454/asyncreq/internal/request"
	"github.com/raysh454/asyncreq/internal/response"
	"github.com/raysh454/asyncreq/internal/transport"
)

// pipeline carries one request from validation to delivery.
type pipeline struct {
	id      string
	spec    request.Spec
	handler dispatch.Handler
	client  *Client
	logger  logging.Logger

	mu    sync.Mutex
	state State
}

// advance moves to next if the transition is legal. Illegal transitions are
// logged and refused, so a request never re-enters an earlier state.
func (p *pipeline) advance(next State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !CanTransition(p.state, next) {
		p.logger.Error("illegal request state transition",
			logging.Field{Key: "from", Value: p.state.String()},
			logging.Field{Key: "to", Value: next.String()})
		return false
	}
	p.state = next
	return true
}

func (p *pipeline) current() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *pipeline) run() {
	p.advance(StateValidating)
	if err := request.Validate(p.spec); err != nil {
		p.advance(StateValidationFailed)
		msg := err.Error()
		var ve *request.ValidationError
		if errors.As(err, &ve) {
			msg = ve.Message
		}
		p.finish(response.Failure(response.KindValidation, msg, p.spec.URL))
		return
	}
	p.advance(StateValidated)

	req := p.client.builder.Build(p.spec)
	req.ID = p.id

	p.advance(StateDispatched)
	tr := p.client.transport
	if tr == nil {
		p.logger.Debug("no transport configured")
		p.startFailed(response.Failure(response.KindTransportUnavailable, msgTransportUnavailable, p.spec.URL))
		return
	}

	p.logger.Info("starting http request",
		logging.Field{Key: "method", Value: req.Method},
		logging.Field{Key: "url", Value: req.URL})
	if req.Body != "" {
		p.logger.Debug("request body", logging.Field{Key: "body", Value: req.Body})
	}

	if !tr.Start(req, p.complete) {
		p.logger.Debug("transport refused request")
		p.startFailed(response.Failure(response.KindTransportStart, msgTransportStart, p.spec.URL))
	}
}

func (p *pipeline) startFailed(r response.Result) {
	if !p.advance(StateTransportStartFailed) {
		return
	}
	p.finish(r)
}

// complete is the transport's completion callback. It may run on any goroutine.
func (p *pipeline) complete(o transport.Outcome) {
	if !p.advance(StateTransportCompleted) {
		return
	}
	result := response.Normalize(o)
	p.advance(StateNormalized)

	p.logger.Info("http request completed",
		logging.Field{Key: "success", Value: result.Success},
		logging.Field{Key: "status_code", Value: result.StatusCode},
		logging.Field{Key: "elapsed_seconds", Value: result.ElapsedSeconds})
	p.finish(result)
}

func (p *pipeline) finish(r response.Result) {
	if !p.advance(StateTerminal) {
		return
	}
	observers := p.client.snapshotObservers()
	hooks := make([]func(response.Result), 0, len(observers))
	for _, o := range observers {
		o := o
		hooks = append(hooks, func(r response.Result) { o.Observe(p.id, p.spec, r) })
	}
	p.client.dispatcher.Deliver(p.id, r, p.handler, hooks...)
}
