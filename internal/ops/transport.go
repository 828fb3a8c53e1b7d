// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package ops

import (
	"context"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/simscript/internal/core"
	"github.com/holomush/simscript/internal/registry"
	"github.com/holomush/simscript/internal/transport"
)

// Email sends llEmail. It never produces an event.
type Email struct {
	Mailer transport.Mailer
	Mail   transport.Mail
}

var _ registry.Operation = Email{}

// Name implements registry.Operation.
func (Email) Name() string { return "email" }

// Execute implements registry.Operation.
func (o Email) Execute(ctx context.Context, _ core.Token) (registry.Result, error) {
	if o.Mailer == nil {
		return registry.Result{}, core.ErrCollaboratorUnavailable("mail", nil)
	}
	if err := o.Mailer.Send(ctx, o.Mail); err != nil {
		return registry.Result{}, err
	}
	return registry.Result{}, nil
}

// Fallback implements registry.Operation.
func (Email) Fallback(core.Token, error) registry.Result {
	return registry.Result{}
}

// RemoteData sends llSendRemoteData and reports the endpoint's answer.
type RemoteData struct {
	Client   transport.RemoteData
	Endpoint string
	Channel  ulid.ULID
	Sender   ulid.ULID
	IData    int64
	SData    string
}

var _ registry.Operation = RemoteData{}

// Name implements registry.Operation.
func (RemoteData) Name() string { return "remote_data" }

// Execute implements registry.Operation.
func (o RemoteData) Execute(ctx context.Context, token core.Token) (registry.Result, error) {
	if o.Client == nil {
		return registry.Result{}, core.ErrCollaboratorUnavailable("remote_data", nil)
	}
	msg := transport.NewRemoteMessage(o.Channel, o.Sender, token, o.IData, o.SData)
	reply, err := o.Client.Send(ctx, o.Endpoint, msg)
	if err != nil {
		return registry.Result{}, err
	}
	return o.reply(token, reply.IData, reply.SData), nil
}

// Fallback implements registry.Operation.
func (o RemoteData) Fallback(token core.Token, _ error) registry.Result {
	return o.reply(token, 0, "")
}

func (o RemoteData) reply(token core.Token, idata int64, sdata string) registry.Result {
	return registry.Result{
		Event: core.EventRemoteData,
		Args: []core.Value{
			core.Integer(RemoteDataReply),
			core.Key(o.Channel),
			core.Key(token.Key()),
			core.String(""),
			core.Integer(idata),
			core.String(sdata),
		},
	}
}

// HTTPRequest performs llHTTPRequest. Any HTTP status, including errors, is
// a response; only transport failures use the fallback.
type HTTPRequest struct {
	Client  transport.HTTPClient
	Request transport.HTTPRequest
}

var _ registry.Operation = HTTPRequest{}

// Name implements registry.Operation.
func (HTTPRequest) Name() string { return "http_request" }

// Execute implements registry.Operation.
func (o HTTPRequest) Execute(ctx context.Context, token core.Token) (registry.Result, error) {
	if o.Client == nil {
		return registry.Result{}, core.ErrCollaboratorUnavailable("http", nil)
	}
	resp, err := o.Client.Do(ctx, o.Request)
	if err != nil {
		return registry.Result{}, err
	}
	return httpResponse(token, resp.Status, resp.Headers, resp.Body), nil
}

// Fallback implements registry.Operation.
func (HTTPRequest) Fallback(token core.Token, _ error) registry.Result {
	return httpResponse(token, HTTPFailureStatus, nil, "")
}

func httpResponse(token core.Token, status int, headers []string, body string) registry.Result {
	meta := make([]core.Value, len(headers))
	for i, h := range headers {
		meta[i] = core.String(h)
	}
	return registry.Result{
		Event: core.EventHTTPResponse,
		Args: []core.Value{
			core.Key(token.Key()),
			core.Integer(int64(status)),
			core.List(meta...),
			core.String(body),
		},
	}
}
