// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// promotedKeys are oops context keys logged as top-level attributes, so a
// failure can be filtered by script or token like any other runtime log line.
var promotedKeys = []string{"script", "token", "operation", "function"}

// LogError logs err at error level. For oops errors the code and any
// remaining context are attached, with promotedKeys lifted out of the context.
func LogError(logger *slog.Logger, msg string, err error) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		logger.Error(msg, "error", err)
		return
	}

	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil {
		attrs = append(attrs, "code", code)
	}

	ctx := oopsErr.Context()
	rest := make(map[string]any, len(ctx))
	for k, v := range ctx {
		rest[k] = v
	}
	for _, key := range promotedKeys {
		if v, found := rest[key]; found {
			attrs = append(attrs, key, v)
			delete(rest, key)
		}
	}
	if len(rest) > 0 {
		attrs = append(attrs, "context", rest)
	}
	logger.Error(msg, attrs...)
}
