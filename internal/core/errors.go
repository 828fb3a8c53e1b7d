// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package core

import (
	"time"

	"github.com/samber/oops"
)

// Error codes shared by the script runtime.
const (
	CodeInvalidArgument         = "INVALID_ARGUMENT"
	CodePermissionDenied        = "PERMISSION_DENIED"
	CodeCollaboratorUnavailable = "COLLABORATOR_UNAVAILABLE"
	CodeRateLimited             = "RATE_LIMITED"
	CodeLimitExceeded           = "LIMIT_EXCEEDED"
	CodeScriptNotFound          = "SCRIPT_NOT_FOUND"
	CodeOperationPanic          = "OPERATION_PANIC"
	CodeRequestExpired          = "REQUEST_EXPIRED"
	CodeShuttingDown            = "SHUTTING_DOWN"
)

// ErrInvalidArgument rejects a call before any request is registered.
func ErrInvalidArgument(fn, reason string) error {
	return oops.Code(CodeInvalidArgument).
		With("function", fn).
		Errorf("%s: %s", fn, reason)
}

// ErrPermissionDenied rejects a call whose script lacks a capability.
func ErrPermissionDenied(fn, capability string) error {
	return oops.Code(CodePermissionDenied).
		With("function", fn).
		With("capability", capability).
		Errorf("%s requires %s", fn, capability)
}

// ErrCollaboratorUnavailable wraps a failure of an external service.
func ErrCollaboratorUnavailable(collaborator string, cause error) error {
	builder := oops.Code(CodeCollaboratorUnavailable).With("collaborator", collaborator)
	if cause != nil {
		return builder.Wrap(cause)
	}
	return builder.Errorf("%s not configured", collaborator)
}

// ErrRateLimited reports a call refused until cooldown has passed.
func ErrRateLimited(fn string, cooldown time.Duration) error {
	return oops.Code(CodeRateLimited).
		With("function", fn).
		With("cooldown_ms", cooldown.Milliseconds()).
		Errorf("%s: too many requests", fn)
}

// ErrLimitExceeded reports a per-script resource limit.
func ErrLimitExceeded(what string, limit int) error {
	return oops.Code(CodeLimitExceeded).
		With("resource", what).
		With("limit", limit).
		Errorf("too many %s (limit %d)", what, limit)
}

// ErrScriptNotFound reports an unknown script reference.
func ErrScriptNotFound(ref ScriptRef) error {
	return oops.Code(CodeScriptNotFound).
		With("script", ref.String()).
		Errorf("script %s not found", ref.String())
}

// ScriptMessage extracts the text shown to a script for a rejected call.
func ScriptMessage(err error) string {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return "internal error"
	}

	switch oopsErr.Code() {
	case CodeInvalidArgument, CodePermissionDenied, CodeLimitExceeded:
		return oopsErr.Error()
	case CodeRateLimited:
		return "too many requests, slow down"
	case CodeCollaboratorUnavailable:
		return "service unavailable"
	case CodeShuttingDown:
		return "region is shutting down"
	default:
		return "internal error"
	}
}
