package server

import (
	"github.com/raysh454/asyncreq/internal/response"
)

// SubmitRequest is the payload for POST /requests. Method defaults to GET.
type SubmitRequest struct {
	URL     string            `json:"url" example:"http://localhost:9999/ok"`
	Method  string            `json:"method" example:"GET"`
	Body    string            `json:"body" example:""`
	Headers map[string]string `json:"headers"`
}

// SubmitResponse carries the id assigned to an accepted request.
type SubmitResponse struct {
	ID string `json:"id" example:"5b6f3c1e-2f44-4c8e-9d53-0a4f4f0c9a11"`
}

// StatusResponse describes an HTTP status code.
type StatusResponse struct {
	Code        int    `json:"code" example:"404"`
	Success     bool   `json:"success" example:"false"`
	Description string `json:"description" example:"Not Found"`
}

// DomainResponse reports the domain and validity of a URL.
type DomainResponse struct {
	URL    string `json:"url" example:"https://api.example.com/v1?x=1"`
	Domain string `json:"domain" example:"api.example.com"`
	Valid  bool   `json:"valid" example:"true"`
}

// ResultEvent is pushed to websocket subscribers for every finished request.
type ResultEvent struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Result response.Result `json:"result"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"not found"`
}
