// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"errors"
	"regexp"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/simscript/pkg/errutil"
)

type fakeMigrate struct {
	upErr, downErr, stepsErr, forceErr error
	version                            uint
	dirty                              bool
	versionErr                         error
	closeSourceErr, closeDBErr         error
}

func (f *fakeMigrate) Up() error                    { return f.upErr }
func (f *fakeMigrate) Down() error                  { return f.downErr }
func (f *fakeMigrate) Steps(int) error              { return f.stepsErr }
func (f *fakeMigrate) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }
func (f *fakeMigrate) Force(int) error              { return f.forceErr }
func (f *fakeMigrate) Close() (error, error)        { return f.closeSourceErr, f.closeDBErr }

func TestNewMigrator_BadURL(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/simscript")
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestDriverURL(t *testing.T) {
	assert.Equal(t, "pgx5://u@h/db", driverURL("postgres://u@h/db"))
	assert.Equal(t, "pgx5://u@h/db", driverURL("postgresql://u@h/db"))
	assert.Equal(t, "pgx5://u@h/db", driverURL("pgx5://u@h/db"))
}

func TestMigrator_Operations(t *testing.T) {
	boom := errors.New("database locked")

	tests := []struct {
		name     string
		fake     *fakeMigrate
		run      func(m *Migrator) error
		wantCode string
	}{
		{"up", &fakeMigrate{}, (*Migrator).Up, ""},
		{"up no change", &fakeMigrate{upErr: migrate.ErrNoChange}, (*Migrator).Up, ""},
		{"up failure", &fakeMigrate{upErr: boom}, (*Migrator).Up, "MIGRATION_UP_FAILED"},
		{"down no change", &fakeMigrate{downErr: migrate.ErrNoChange}, (*Migrator).Down, ""},
		{"down failure", &fakeMigrate{downErr: boom}, (*Migrator).Down, "MIGRATION_DOWN_FAILED"},
		{"steps no change", &fakeMigrate{stepsErr: migrate.ErrNoChange}, func(m *Migrator) error { return m.Steps(0) }, ""},
		{"steps failure", &fakeMigrate{stepsErr: boom}, func(m *Migrator) error { return m.Steps(-1) }, "MIGRATION_STEPS_FAILED"},
		{"force", &fakeMigrate{}, func(m *Migrator) error { return m.Force(1) }, ""},
		{"force negative", &fakeMigrate{}, func(m *Migrator) error { return m.Force(-1) }, "INVALID_VERSION"},
		{"force failure", &fakeMigrate{forceErr: boom}, func(m *Migrator) error { return m.Force(2) }, "MIGRATION_FORCE_FAILED"},
		{"close", &fakeMigrate{}, (*Migrator).Close, ""},
		{"close source", &fakeMigrate{closeSourceErr: boom}, (*Migrator).Close, "MIGRATION_CLOSE_FAILED"},
		{"close both", &fakeMigrate{closeSourceErr: boom, closeDBErr: boom}, (*Migrator).Close, "MIGRATION_CLOSE_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(&Migrator{m: tt.fake})
			if tt.wantCode == "" {
				require.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestMigrator_Version(t *testing.T) {
	v, dirty, err := (&Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}).Version()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)

	v, dirty, err = (&Migrator{m: &fakeMigrate{version: 1, dirty: true}}).Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.True(t, dirty)

	_, _, err = (&Migrator{m: &fakeMigrate{versionErr: errors.New("connection lost")}}).Version()
	errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
}

func TestMigrator_Pending(t *testing.T) {
	all, err := MigrationVersions()
	require.NoError(t, err)
	require.NotEmpty(t, all)

	pending, err := (&Migrator{m: &fakeMigrate{version: 1}}).Pending()
	require.NoError(t, err)
	assert.Equal(t, all[1:], pending)

	pending, err = (&Migrator{m: &fakeMigrate{version: all[len(all)-1]}}).Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	ups, downs := 0, 0
	for _, entry := range entries {
		assert.Regexp(t, pattern, entry.Name())
		if regexp.MustCompile(`\.up\.sql$`).MatchString(entry.Name()) {
			ups++
		} else {
			downs++
		}
	}
	assert.Equal(t, ups, downs, "every migration needs a down")

	name, err := MigrationName(1)
	require.NoError(t, err)
	assert.Equal(t, "000001_agents", name)

	name, err = MigrationName(999)
	require.NoError(t, err)
	assert.Empty(t, name)
}
