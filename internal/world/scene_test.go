// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package world

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/simscript/internal/core"
)

func newTestScene(t *testing.T) (*MemoryScene, Entity) {
	t.Helper()
	scene := NewMemoryScene()
	sensor := Entity{Key: core.NewULID(), Name: "Sensor Orb", Type: TypePassive | TypeScripted, Pos: core.Vector{X: 100, Y: 100, Z: 20}}
	scene.Put(sensor)
	return scene, sensor
}

func TestMemoryScene_Detect(t *testing.T) {
	scene, sensor := newTestScene(t)

	near := Entity{Key: core.NewULID(), Name: "Bob", Type: TypeAgent, Pos: core.Vector{X: 105, Y: 100, Z: 20}}
	far := Entity{Key: core.NewULID(), Name: "Alice", Type: TypeAgent, Pos: core.Vector{X: 100, Y: 150, Z: 20}}
	box := Entity{Key: core.NewULID(), Name: "Box", Type: TypePassive, Pos: core.Vector{X: 102, Y: 100, Z: 20}}
	scene.Put(near)
	scene.Put(far)
	scene.Put(box)

	t.Run("agents in range only", func(t *testing.T) {
		hits, err := scene.Detect(context.Background(), sensor.Key, Query{Type: TypeAgent, Range: 20, Arc: math.Pi})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "Bob", hits[0].Name)
		assert.InDelta(t, 5.0, hits[0].Dist, 1e-9)
	})

	t.Run("nearest first across types", func(t *testing.T) {
		hits, err := scene.Detect(context.Background(), sensor.Key, Query{Type: TypeAgent | TypePassive, Range: 96, Arc: math.Pi})
		require.NoError(t, err)
		require.Len(t, hits, 3)
		assert.Equal(t, []string{"Box", "Bob", "Alice"}, []string{hits[0].Name, hits[1].Name, hits[2].Name})
	})

	t.Run("name filter is exact", func(t *testing.T) {
		hits, err := scene.Detect(context.Background(), sensor.Key, Query{Name: "Bo", Type: TypeAgent, Range: 96, Arc: math.Pi})
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("key filter", func(t *testing.T) {
		hits, err := scene.Detect(context.Background(), sensor.Key, Query{Key: far.Key, Type: TypeAgent, Range: 96, Arc: math.Pi})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, far.Key, hits[0].Key)
	})

	t.Run("narrow arc excludes sideways targets", func(t *testing.T) {
		hits, err := scene.Detect(context.Background(), sensor.Key, Query{Type: TypeAgent, Range: 96, Arc: math.Pi / 4})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "Bob", hits[0].Name)
	})

	t.Run("never detects itself", func(t *testing.T) {
		hits, err := scene.Detect(context.Background(), sensor.Key, Query{Type: TypeScripted | TypePassive, Range: 96, Arc: math.Pi})
		require.NoError(t, err)
		for _, h := range hits {
			assert.NotEqual(t, sensor.Key, h.Key)
		}
	})
}

func TestMemoryScene_DetectCapsResults(t *testing.T) {
	scene, sensor := newTestScene(t)
	for i := range MaxDetected + 4 {
		scene.Put(Entity{Key: core.NewULID(), Name: "crowd", Type: TypeAgent, Pos: core.Vector{X: 100 + float64(i), Y: 101, Z: 20}})
	}

	hits, err := scene.Detect(context.Background(), sensor.Key, Query{Type: TypeAgent, Range: 96, Arc: math.Pi})
	require.NoError(t, err)
	assert.Len(t, hits, MaxDetected)
}

func TestMemoryScene_UnknownOriginDetectsNothing(t *testing.T) {
	scene, _ := newTestScene(t)
	hits, err := scene.Detect(context.Background(), core.NewULID(), Query{Type: TypeAgent, Range: 96, Arc: math.Pi})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryScene_MoveAndRemove(t *testing.T) {
	scene, sensor := newTestScene(t)

	require.True(t, scene.Move(sensor.Key, core.Vector{X: 1, Y: 2, Z: 3}))
	pos, ok := scene.PositionOf(sensor.Key)
	require.True(t, ok)
	assert.Equal(t, core.Vector{X: 1, Y: 2, Z: 3}, pos)

	scene.Remove(sensor.Key)
	_, ok = scene.PositionOf(sensor.Key)
	assert.False(t, ok)
	assert.False(t, scene.Move(sensor.Key, core.Vector{}))
}
