// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/simscript/pkg/errutil"
)

func TestNewULID(t *testing.T) {
	id1 := NewULID()
	id2 := NewULID()

	assert.NotEmpty(t, id1.String(), "ULID should not be empty")
	assert.NotEqual(t, id1.String(), id2.String(), "Two ULIDs should be different")
	// ULIDs should be lexicographically sortable by time
	assert.LessOrEqual(t, id1.String(), id2.String(), "Later ULID should sort after earlier ULID")
}

func TestParseULID(t *testing.T) {
	original := NewULID()
	parsed, err := ParseULID(original.String())
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

func TestParseULID_Invalid(t *testing.T) {
	_, err := ParseULID("invalid")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, CodeInvalidArgument)
}

func TestParseKey_EmptyIsNullKey(t *testing.T) {
	key, err := ParseKey("")
	require.NoError(t, err)
	assert.Equal(t, NullKey, key)
}

func TestNewToken_UniqueUnderConcurrency(t *testing.T) {
	const goroutines = 16
	const perGoroutine = 500

	var mu sync.Mutex
	seen := make(map[Token]struct{}, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]Token, 0, perGoroutine)
			for range perGoroutine {
				local = append(local, NewToken())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, tok := range local {
				seen[tok] = struct{}{}
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestToken_RoundTrip(t *testing.T) {
	tok := NewToken()
	require.False(t, tok.IsZero())

	parsed, err := ParseToken(tok.String())
	require.NoError(t, err)
	assert.Equal(t, tok, parsed)
	assert.True(t, Token{}.IsZero())
}
