// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package transport

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/simscript/internal/core"
)

// HTTP defaults.
const (
	DefaultHTTPTimeout = 30 * time.Second
	DefaultBodyLimit   = 2048
	MaxBodyLimit       = 16384
)

// HTTPRequest is an outbound request issued by a script.
type HTTPRequest struct {
	Method   string
	URL      string
	MimeType string
	Body     string
	// BodyLimit truncates the response body. Zero means DefaultBodyLimit.
	BodyLimit int
	Headers   map[string]string
}

// HTTPResponse is what the script receives.
type HTTPResponse struct {
	Status  int
	Headers []string
	Body    string
}

// HTTPClient performs script HTTP requests.
type HTTPClient interface {
	Do(ctx context.Context, req HTTPRequest) (HTTPResponse, error)
}

// WebClient is an HTTPClient over net/http.
type WebClient struct {
	client    *http.Client
	userAgent string
}

var _ HTTPClient = (*WebClient)(nil)

// NewWebClient creates a client with the given timeout.
func NewWebClient(timeout time.Duration, userAgent string) *WebClient {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &WebClient{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// ValidateHTTPRequest checks the parts of req a script controls.
func ValidateHTTPRequest(req HTTPRequest) error {
	if err := ValidateEndpoint(req.URL); err != nil {
		return err
	}
	switch req.Method {
	case "", http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return oops.Code(core.CodeInvalidArgument).With("method", req.Method).Errorf("unsupported HTTP method %q", req.Method)
	}
	if req.BodyLimit < 0 || req.BodyLimit > MaxBodyLimit {
		return oops.Code(core.CodeInvalidArgument).With("body_limit", req.BodyLimit).Errorf("body limit must be between 0 and %d", MaxBodyLimit)
	}
	return nil
}

// Do implements HTTPClient. Any response, including 4xx and 5xx, is a
// success; only transport failures are errors.
func (c *WebClient) Do(ctx context.Context, req HTTPRequest) (HTTPResponse, error) {
	if err := ValidateHTTPRequest(req); err != nil {
		return HTTPResponse{}, err
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return HTTPResponse{}, oops.Code(core.CodeInvalidArgument).With("url", req.URL).Wrap(err)
	}
	if req.MimeType != "" && body != nil {
		httpReq.Header.Set("Content-Type", req.MimeType)
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return HTTPResponse{}, core.ErrCollaboratorUnavailable("http", oops.With("url", req.URL).Wrap(err))
	}
	defer drainAndClose(resp.Body)

	limit := req.BodyLimit
	if limit == 0 {
		limit = DefaultBodyLimit
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, int64(limit)))
	if err != nil {
		return HTTPResponse{}, core.ErrCollaboratorUnavailable("http", oops.With("url", req.URL).Wrap(err))
	}

	return HTTPResponse{
		Status:  resp.StatusCode,
		Headers: flattenHeaders(resp.Header),
		Body:    string(data),
	}, nil
}

// flattenHeaders renders headers as a sorted name, value, name, value list.
func flattenHeaders(h http.Header) []string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]string, 0, 2*len(names))
	for _, name := range names {
		out = append(out, name, h.Get(name))
	}
	return out
}
