// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package region

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/simscript/internal/core"
	"github.com/holomush/simscript/internal/listen"
	"github.com/holomush/simscript/internal/registry"
	"github.com/holomush/simscript/internal/script/llfunc"
	"github.com/holomush/simscript/internal/throttle"
	"github.com/holomush/simscript/internal/world"
)

var _ llfunc.Host = (*Region)(nil)

// admit checks that owner may still register something. Callers hold r.mu
// for reading.
func (r *Region) admit(ctx context.Context, owner core.ScriptRef) error {
	if _, ok := r.scripts[owner]; !ok {
		return core.ErrScriptNotFound(owner)
	}
	if err := ctx.Err(); err != nil {
		return oops.Code(core.CodeShuttingDown).
			With("script", owner.String()).
			Wrapf(err, "script is stopping")
	}
	return nil
}

// Request registers op for owner and hands it to the worker pool.
func (r *Region) Request(ctx context.Context, owner core.ScriptRef, op registry.Operation) (core.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.admit(ctx, owner); err != nil {
		return core.Token{}, err
	}

	token := r.registry.Register(owner, op)
	if err := r.dispatcher.Dispatch(ctx, token, op); err != nil {
		r.registry.Resolve(token, registry.Result{})
		return core.Token{}, err
	}
	slog.Debug("request issued",
		"script", owner.String(),
		"token", token.String(),
		"operation", op.Name())
	return token, nil
}

// Charge applies owner's throttle for category.
func (r *Region) Charge(owner core.ScriptRef, category throttle.Category) time.Duration {
	return r.throttle.Charge(owner, category)
}

// AllowHTTP takes a token from owner's llHTTPRequest bucket.
func (r *Region) AllowHTTP(owner core.ScriptRef) bool {
	return r.httpGate.Allow(owner)
}

// Listen opens a listen for owner.
func (r *Region) Listen(ctx context.Context, owner core.ScriptRef, channel int32, filter listen.Filter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.admit(ctx, owner); err != nil {
		return -1, err
	}
	return r.listens.Open(owner, channel, filter)
}

// ListenControl enables or disables one of owner's listens.
func (r *Region) ListenControl(owner core.ScriptRef, handle int, active bool) bool {
	return r.listens.SetActive(owner, handle, active)
}

// ListenRemove closes one of owner's listens.
func (r *Region) ListenRemove(owner core.ScriptRef, handle int) bool {
	return r.listens.Remove(owner, handle)
}

// Say publishes chat from owner's part.
func (r *Region) Say(owner core.ScriptRef, kind world.ChatKind, channel int32, message string) {
	r.mu.RLock()
	s, ok := r.scripts[owner]
	r.mu.RUnlock()
	if !ok {
		return
	}

	message = truncateUTF8(message, MaxChatBytes)
	chat := world.Chat{
		Kind:       kind,
		Channel:    channel,
		SenderName: s.spec.PartName,
		SenderKey:  owner.PartID,
		SenderPart: owner.PartID,
		Message:    message,
		Origin:     r.Position(owner),
	}
	if kind == world.ChatOwner {
		chat.Target = s.spec.Owner
	}
	r.bus.Publish(chat)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Sense queues a one-shot sweep for owner.
func (r *Region) Sense(ctx context.Context, owner core.ScriptRef, q world.Query) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.admit(ctx, owner); err != nil {
		return err
	}
	r.sensors.Sense(owner, q)
	return nil
}

// SenseRepeat replaces owner's repeating sweep.
func (r *Region) SenseRepeat(ctx context.Context, owner core.ScriptRef, q world.Query, interval time.Duration) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.admit(ctx, owner); err != nil {
		return err
	}
	r.sensors.SenseRepeat(owner, q, interval)
	return nil
}

// SensorRemove stops owner's repeating sweep.
func (r *Region) SensorRemove(owner core.ScriptRef) bool {
	return r.sensors.Remove(owner)
}

// Position returns where owner's part is.
func (r *Region) Position(owner core.ScriptRef) core.Vector {
	if pos, ok := r.scene.PositionOf(owner.PartID); ok {
		return pos
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.scripts[owner]; ok {
		return s.spec.Position
	}
	return core.Vector{}
}

// Key2Name names id from the presence cache or the scene. It never waits on
// the directory.
func (r *Region) Key2Name(id ulid.ULID) string {
	if account, ok := r.cache.Peek(id); ok {
		return account.Name()
	}
	if namer, ok := r.scene.(Namer); ok {
		if e, ok := namer.Lookup(id); ok {
			return e.Name
		}
	}
	return ""
}
