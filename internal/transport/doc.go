// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package transport holds the outbound collaborators deferred operations
// call: mail, remote data and plain HTTP.
package transport
