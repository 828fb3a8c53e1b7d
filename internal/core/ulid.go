// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package core

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NullKey is the all-zero key scripts use as a wildcard or "no key" value.
var NullKey = ulid.ULID{}

// NewULID generates a new ULID.
func NewULID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}

// ParseULID parses a ULID string.
func ParseULID(s string) (ulid.ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ulid.ULID{}, oops.Code(CodeInvalidArgument).With("key", s).Wrapf(err, "invalid key %q", s)
	}
	return id, nil
}

// ParseKey parses a script-supplied key. Empty strings parse to NullKey.
func ParseKey(s string) (ulid.ULID, error) {
	if s == "" {
		return NullKey, nil
	}
	return ParseULID(s)
}

// Token correlates a deferred request with the event that answers it.
// Tokens are ULIDs drawn from a monotonic source, so they are unique for the
// life of the process.
type Token ulid.ULID

// NewToken allocates a fresh correlation token.
func NewToken() Token {
	return Token(NewULID())
}

// ParseToken parses the string form of a token.
func ParseToken(s string) (Token, error) {
	id, err := ParseULID(s)
	if err != nil {
		return Token{}, err
	}
	return Token(id), nil
}

// String returns the key form handed to scripts.
func (t Token) String() string {
	return ulid.ULID(t).String()
}

// IsZero reports whether t is the null token.
func (t Token) IsZero() bool {
	return ulid.ULID(t) == NullKey
}

// Key returns the token as a key value.
func (t Token) Key() ulid.ULID {
	return ulid.ULID(t)
}
