// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/holomush/simscript/internal/core"
)

// Remote data defaults.
const (
	DefaultRemoteMethod     = "RemoteData.Send"
	DefaultRemoteTimeout    = 10 * time.Second
	DefaultRemoteRetries    = 3
	DefaultRemoteRetryDelay = 500 * time.Millisecond
)

// RemoteMessage is the payload of llSendRemoteData.
type RemoteMessage struct {
	Channel   string `json:"channel"`
	MessageID string `json:"message_id"`
	Sender    string `json:"sender"`
	IData     int64  `json:"idata"`
	SData     string `json:"sdata"`
}

// RemoteReply is the endpoint's answer.
type RemoteReply struct {
	IData int64  `json:"idata"`
	SData string `json:"sdata"`
}

// RemoteData sends a message to a remote endpoint and waits for its reply.
type RemoteData interface {
	Send(ctx context.Context, endpoint string, msg RemoteMessage) (RemoteReply, error)
}

// RemoteConfig configures a RemoteDataClient.
type RemoteConfig struct {
	Method     string
	Timeout    time.Duration
	MaxRetries uint64
	RetryDelay time.Duration
}

// RemoteDataClient speaks JSON-RPC 2.0 over HTTP. Connection-level failures
// and gateway errors are retried with exponential backoff; JSON-RPC errors
// are not.
type RemoteDataClient struct {
	client     *http.Client
	method     string
	maxRetries uint64
	retryDelay time.Duration
}

var _ RemoteData = (*RemoteDataClient)(nil)

// NewRemoteDataClient creates a client, filling unset fields with defaults.
func NewRemoteDataClient(cfg RemoteConfig) *RemoteDataClient {
	if cfg.Method == "" {
		cfg.Method = DefaultRemoteMethod
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRemoteTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRemoteRetryDelay
	}
	return &RemoteDataClient{
		client:     &http.Client{Timeout: cfg.Timeout},
		method:     cfg.Method,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// ValidateEndpoint checks that endpoint is an absolute http(s) URL.
func ValidateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return oops.Code(core.CodeInvalidArgument).With("endpoint", endpoint).Wrapf(err, "invalid endpoint")
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return oops.Code(core.CodeInvalidArgument).With("endpoint", endpoint).Errorf("endpoint must be an http or https URL")
	}
	return nil
}

// Send implements RemoteData.
func (c *RemoteDataClient) Send(ctx context.Context, endpoint string, msg RemoteMessage) (RemoteReply, error) {
	if err := ValidateEndpoint(endpoint); err != nil {
		return RemoteReply{}, err
	}

	body, err := json2.EncodeClientRequest(c.method, msg)
	if err != nil {
		return RemoteReply{}, oops.With("operation", "encode remote data request").Wrap(err)
	}

	var (
		reply   RemoteReply
		attempt int
	)
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := c.post(ctx, endpoint, body, &reply)
		if err != nil && isTransient(err) {
			slog.Debug("remote data attempt failed",
				"endpoint", endpoint,
				"attempt", attempt,
				"error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return RemoteReply{}, core.ErrCollaboratorUnavailable("remote_data", oops.
			With("endpoint", endpoint).
			With("attempts", attempt).
			Wrap(err))
	}
	return reply, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return "unexpected status " + http.StatusText(e.code)
}

func (c *RemoteDataClient) post(ctx context.Context, endpoint string, body []byte, reply *RemoteReply) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{code: resp.StatusCode}
	}
	return json2.DecodeClientResponse(resp.Body, reply)
}

// isTransient reports whether another attempt might succeed.
func isTransient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		switch se.code {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe")
}

// drainAndClose lets the connection be reused.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body) //nolint:errcheck // best effort
	_ = body.Close()
}

// NewRemoteMessage builds a message from script-side values.
func NewRemoteMessage(channel, sender ulid.ULID, token core.Token, idata int64, sdata string) RemoteMessage {
	return RemoteMessage{
		Channel:   channel.String(),
		MessageID: token.String(),
		Sender:    sender.String(),
		IData:     idata,
		SData:     sdata,
	}
}
