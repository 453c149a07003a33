package server

import "github.com/raysh454/asyncreq/internal/logging"

type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string

	// Logger is optional; a stdout logger is used when nil.
	Logger logging.Logger
}
