package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raysh454/asyncreq/internal/client"
	"github.com/raysh454/asyncreq/internal/dispatch"
	"github.com/raysh454/asyncreq/internal/history"
	"github.com/raysh454/asyncreq/internal/logging"
	"github.com/raysh454/asyncreq/internal/request"
	"github.com/raysh454/asyncreq/internal/response"
	"github.com/raysh454/asyncreq/internal/server"
	"github.com/raysh454/asyncreq/internal/transport"
)

// Application is the global runtime state container. It owns the execution
// loop, the transport, the optional history journal and API server, and the
// client wired over them.
type Application struct {
	Config *Config
	Logger logging.Logger

	Loop      *dispatch.Loop
	Transport transport.Transport
	History   *history.Store
	Client    *client.Client
	Server    *server.Server

	shutdownOnce sync.Once
}

// NewApplication wires every component from cfg. A transport that cannot be
// constructed is logged and left nil, so requests fail as
// transport-unavailable instead of aborting startup.
func NewApplication(cfg *Config, logger logging.Logger) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewStdoutLogger("asyncreq")
	}

	a := &Application{Config: cfg, Logger: logger}
	a.Loop = dispatch.NewLoop(logger)
	a.Loop.Start()

	transport.RegisterDefaultBackends()
	tr, err := transport.NewTransport(cfg.Transport, logger)
	if err != nil {
		logger.Warn("transport unavailable", logging.Field{Key: "backend", Value: string(cfg.Transport.Backend)}, logging.Field{Key: "error", Value: err})
	} else {
		a.Transport = tr
	}

	var observers []client.Observer
	if cfg.HistoryPath != "" {
		store, err := history.Open(cfg.HistoryPath, logger)
		if err != nil {
			a.closeResources()
			return nil, fmt.Errorf("opening history: %w", err)
		}
		a.History = store
		observers = append(observers, store)
	}

	a.Client, err = client.New(client.Options{
		Transport:  a.Transport,
		Dispatcher: dispatch.NewDispatcher(a.Loop, logger),
		Logger:     logger,
		Observers:  observers,
	})
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("creating client: %w", err)
	}

	if cfg.Serve {
		srvCfg := cfg.ServerCfg
		if srvCfg.Logger == nil {
			srvCfg.Logger = logger.With(logging.Field{Key: "component", Value: "server"})
		}
		a.Server, err = server.NewServer(srvCfg, a.Client, a.History)
		if err != nil {
			a.closeResources()
			return nil, fmt.Errorf("creating server: %w", err)
		}
	}

	return a, nil
}

// Run serves the API when configured and blocks until ctx is done or the
// server fails. The execution loop runs on its own goroutine regardless.
func (a *Application) Run(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	a.Logger.Info("application starting", logging.Field{Key: "serve", Value: a.Server != nil})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if a.Server != nil {
		srv := a.Server.HTTPServer()
		g.Go(func() error {
			a.Logger.Info("api server listening", logging.Field{Key: "addr", Value: srv.Addr})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("api server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			a.Server.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

type onceResult struct {
	res response.Result
	err error
}

// RunOnce submits spec and waits for its result, which is written as JSON to
// out from the loop. Once RunOnce has returned, a late result is not written.
func (a *Application) RunOnce(ctx context.Context, spec request.Spec, out io.Writer) (response.Result, error) {
	var (
		mu        sync.Mutex
		abandoned bool
	)
	done := make(chan onceResult, 1)

	id := a.Client.Submit(spec, func(r response.Result) {
		mu.Lock()
		defer mu.Unlock()
		if abandoned {
			a.Logger.Debug("result arrived after the caller stopped waiting", logging.Field{Key: "url", Value: r.URL})
			return
		}
		var err error
		if out != nil {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			err = enc.Encode(r)
		}
		done <- onceResult{res: r, err: err}
	})

	select {
	case o := <-done:
		return o.result()
	case <-ctx.Done():
	}

	mu.Lock()
	abandoned = true
	mu.Unlock()

	select {
	case o := <-done:
		return o.result()
	default:
	}
	return response.Result{}, fmt.Errorf("request %s did not finish: %w", id, ctx.Err())
}

func (o onceResult) result() (response.Result, error) {
	if o.err != nil {
		return o.res, fmt.Errorf("writing result: %w", o.err)
	}
	return o.res, nil
}

// Shutdown closes the transport, then the loop, then the history journal.
// Results still in flight are delivered on the loop before it stops.
func (a *Application) Shutdown(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.shutdownOnce.Do(func() {
			a.Logger.Info("application shutdown initiated")
			a.closeResources()
		})
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}

func (a *Application) closeResources() {
	// Transport first so its completions are posted while the loop accepts them.
	a.closeTransport()
	// Close waits for the loop goroutine to run everything already accepted.
	a.Loop.Close()
	if a.Server != nil {
		a.Server.Close()
	}
	if a.History != nil {
		if err := a.History.Close(); err != nil {
			a.Logger.Warn("closing history", logging.Field{Key: "error", Value: err})
		}
	}
}

func (a *Application) closeTransport() {
	if a.Transport == nil {
		return
	}
	if err := a.Transport.Close(); err != nil {
		a.Logger.Warn("closing transport", logging.Field{Key: "error", Value: err})
	}
}
