// Command asyncreq performs one asynchronous HTTP request and prints the
// normalized result, or with -serve runs the request API.
//
// Usage:
//
//	asyncreq -url https://example.com
//	asyncreq -url http://localhost:9999/echo -method POST -body '{"a":1}' -H "X-Trace: 1"
//	asyncreq -serve -listen :8080 -history ./asyncreq.db
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raysh454/asyncreq/internal/app"
	"github.com/raysh454/asyncreq/internal/cli"
	"github.com/raysh454/asyncreq/internal/logging"
	"github.com/raysh454/asyncreq/internal/request"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	args, err := cli.ParseArgs(argv)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "asyncreq: %v\n", err)
		return 2
	}

	cfg := app.DefaultConfig()
	cfg.ApplyArgs(args)

	logger := logging.NewLogger(os.Stderr, "asyncreq", logging.ParseLevel(cfg.LogLevel))

	application, err := app.NewApplication(cfg, logger)
	if err != nil {
		logger.Error("starting application", logging.Field{Key: "error", Value: err})
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := application.Shutdown(ctx); err != nil {
			logger.Warn("shutdown", logging.Field{Key: "error", Value: err})
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Serve {
		if err := application.Run(ctx); err != nil {
			logger.Error("application stopped", logging.Field{Key: "error", Value: err})
			return 1
		}
		return 0
	}

	spec := request.Spec{
		URL:     args.URL,
		Method:  args.Method,
		Body:    args.Body,
		Headers: args.Headers,
	}
	res, err := application.RunOnce(ctx, spec, os.Stdout)
	if err != nil {
		logger.Error("request", logging.Field{Key: "error", Value: err})
		return 1
	}
	if !res.Success {
		return 1
	}
	return 0
}
