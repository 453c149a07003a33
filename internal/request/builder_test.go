package request_test

import (
	"testing"

	"github.com/raysh454/asyncreq/internal/request"
	"github.com/raysh454/asyncreq/internal/transport"
)

func TestBuild_DefaultsOnlyWhenAbsent(t *testing.T) {
	t.Parallel()
	b := request.DefaultBuilder()

	req := b.Build(request.Spec{URL: "http://x.com", Method: "post", Body: "{}"})

	if req.Method != "POST" {
		t.Errorf("expected upper-cased method, got %q", req.Method)
	}
	if v, _ := req.Headers.Get("Content-Type"); v != "application/json" {
		t.Errorf("expected default content type, got %q", v)
	}
	if v, _ := req.Headers.Get("User-Agent"); v != request.DefaultUserAgent {
		t.Errorf("expected default user agent, got %q", v)
	}
	if req.Timeout != request.DefaultTimeout {
		t.Errorf("expected %v timeout, got %v", request.DefaultTimeout, req.Timeout)
	}
}

func TestBuild_CallerHeadersWin(t *testing.T) {
	t.Parallel()
	b := request.DefaultBuilder()
	spec := request.Spec{
		URL:    "http://x.com",
		Method: "PUT",
		Body:   "a=b",
		Headers: transport.Headers{
			{Name: "content-type", Value: "text/plain"},
			{Name: "User-Agent", Value: "mine"},
			{Name: "X-Order", Value: "1"},
		},
	}

	req := b.Build(spec)

	if len(req.Headers) != 3 {
		t.Fatalf("expected only caller headers, got %v", req.Headers)
	}
	if req.Headers[0].Name != "content-type" || req.Headers[2].Name != "X-Order" {
		t.Errorf("caller order/case not preserved: %v", req.Headers)
	}
}

func TestBuild_NoContentTypeWithoutBody(t *testing.T) {
	t.Parallel()
	req := request.DefaultBuilder().Build(request.Spec{URL: "http://x.com", Method: "GET"})
	if req.Headers.Has("Content-Type") {
		t.Errorf("GET without body should not get a content type: %v", req.Headers)
	}
}

func TestBuild_DoesNotMutateSpec(t *testing.T) {
	t.Parallel()
	spec := request.Spec{
		URL:     "http://x.com",
		Method:  "post",
		Body:    "{}",
		Headers: transport.Headers{{Name: "X-A", Value: "1"}},
	}
	before := len(spec.Headers)

	req := request.DefaultBuilder().Build(spec)
	req.Headers[0].Value = "changed"

	if spec.Method != "post" || len(spec.Headers) != before || spec.Headers[0].Value != "1" {
		t.Errorf("spec was mutated: %+v", spec)
	}
}
