// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package asset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/simscript/internal/core"
)

func TestMemory_NotecardLine(t *testing.T) {
	part := core.NewULID()
	store := NewMemory()
	store.Put(part, Inventory{Notecards: map[string][]string{"config": {"color=red", "size=2"}}})

	ctx := context.Background()
	line, err := store.NotecardLine(ctx, part, "config", 1)
	require.NoError(t, err)
	assert.Equal(t, "size=2", line)

	line, err = store.NotecardLine(ctx, part, "config", 2)
	require.NoError(t, err)
	assert.Equal(t, EOF, line)

	_, err = store.NotecardLine(ctx, part, "missing", 0)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.NotecardLine(ctx, core.NewULID(), "config", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_Landmark(t *testing.T) {
	part := core.NewULID()
	store := NewMemory()
	home := core.Vector{X: 10, Y: 20, Z: 30}
	store.Put(part, Inventory{Landmarks: map[string]core.Vector{"home": home}})

	pos, err := store.Landmark(context.Background(), part, "home")
	require.NoError(t, err)
	assert.Equal(t, home, pos)

	_, err = store.Landmark(context.Background(), part, "away")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_ContainsAndItems(t *testing.T) {
	part := core.NewULID()
	store := NewMemory()
	store.Put(part, Inventory{
		Notecards: map[string][]string{"b": nil},
		Landmarks: map[string]core.Vector{"a": {}},
	})

	assert.True(t, store.Contains(part, "a"))
	assert.True(t, store.Contains(part, "b"))
	assert.False(t, store.Contains(part, "c"))
	assert.Equal(t, []string{"a", "b"}, store.Items(part))

	store.Remove(part)
	assert.False(t, store.Contains(part, "a"))
	assert.Empty(t, store.Items(part))
}

func TestMemory_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory().NotecardLine(ctx, core.NewULID(), "x", 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadInventory(t *testing.T) {
	dir := t.TempDir()
	long := strings.Repeat("x", MaxLineBytes+10)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greeting.txt"), []byte("hello\r\n"+long+"\n\nlast"), 0o600))

	inv, err := LoadInventory(dir,
		map[string]string{"greeting": "greeting.txt"},
		map[string]core.Vector{"home": {X: 1}})
	require.NoError(t, err)

	lines := inv.Notecards["greeting"]
	require.Len(t, lines, 4)
	assert.Equal(t, "hello", lines[0])
	assert.Len(t, lines[1], MaxLineBytes)
	assert.Equal(t, "", lines[2])
	assert.Equal(t, "last", lines[3])
	assert.Equal(t, core.Vector{X: 1}, inv.Landmarks["home"])
}

func TestLoadInventory_MissingFile(t *testing.T) {
	_, err := LoadInventory(t.TempDir(), map[string]string{"gone": "gone.txt"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
