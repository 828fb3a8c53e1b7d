// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/simscript/pkg/errutil"
)

type fakeMigrator struct {
	version uint
	dirty   bool
	pending []uint
	upErr   error
	forced  int
	ups     int
	downs   int
	closed  bool
}

func (f *fakeMigrator) Up() error {
	f.ups++
	if f.upErr != nil {
		return f.upErr
	}
	if len(f.pending) > 0 {
		f.version = f.pending[len(f.pending)-1]
		f.pending = nil
	}
	return nil
}

func (f *fakeMigrator) Down() error {
	f.downs++
	f.version = 0
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, f.dirty, nil }

func (f *fakeMigrator) Force(v int) error {
	f.forced = v
	return nil
}

func (f *fakeMigrator) Pending() ([]uint, error) { return f.pending, nil }

func (f *fakeMigrator) Close() error {
	f.closed = true
	return nil
}

func useMigrator(t *testing.T, m migrator) *string {
	t.Helper()
	var gotURL string
	orig := newMigrator
	newMigrator = func(url string) (migrator, error) {
		gotURL = url
		return m, nil
	}
	t.Cleanup(func() { newMigrator = orig })
	return &gotURL
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	isolate(t)
	_, err := execute(t, "migrate", "up")
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestMigrateUp(t *testing.T) {
	isolate(t)
	m := &fakeMigrator{pending: []uint{1, 2}}
	url := useMigrator(t, m)

	out, err := execute(t, "migrate", "up", "--database-url", "postgres://db/sim")
	require.NoError(t, err)
	assert.Equal(t, "postgres://db/sim", *url)
	assert.Contains(t, out, "Applying 2 migration(s)")
	assert.Contains(t, out, "Schema at version 2")
	assert.True(t, m.closed)
}

func TestMigrateUp_NothingPending(t *testing.T) {
	isolate(t)
	t.Setenv("DATABASE_URL", "postgres://env/sim")
	m := &fakeMigrator{version: 2}
	useMigrator(t, m)

	out, err := execute(t, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema is up to date")
	assert.Zero(t, m.ups)
}

func TestMigrateUp_Failure(t *testing.T) {
	isolate(t)
	m := &fakeMigrator{pending: []uint{1}, upErr: errors.New("boom")}
	useMigrator(t, m)

	_, err := execute(t, "migrate", "up", "--database-url", "postgres://db/sim")
	require.Error(t, err)
	assert.True(t, m.closed)
}

func TestMigrateStatus(t *testing.T) {
	isolate(t)
	useMigrator(t, &fakeMigrator{version: 1, dirty: true, pending: []uint{2}})

	out, err := execute(t, "migrate", "status", "--database-url", "postgres://db/sim")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 1 (dirty")
	assert.Contains(t, out, "000002_agents_online_index")
}

func TestMigrateDown(t *testing.T) {
	isolate(t)
	m := &fakeMigrator{version: 2}
	useMigrator(t, m)

	out, err := execute(t, "migrate", "down", "--database-url", "postgres://db/sim")
	require.NoError(t, err)
	assert.Equal(t, 1, m.downs)
	assert.Contains(t, out, "All migrations reverted")
}

func TestMigrateForce(t *testing.T) {
	isolate(t)
	m := &fakeMigrator{}
	useMigrator(t, m)

	_, err := execute(t, "migrate", "force", "1", "--database-url", "postgres://db/sim")
	require.NoError(t, err)
	assert.Equal(t, 1, m.forced)

	_, err = execute(t, "migrate", "force", "one", "--database-url", "postgres://db/sim")
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")
}
