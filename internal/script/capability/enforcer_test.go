// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package capability_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/simscript/internal/core"
	"github.com/holomush/simscript/internal/script/capability"
	"github.com/holomush/simscript/pkg/errutil"
)

func TestEnforcer_Check(t *testing.T) {
	tests := []struct {
		name       string
		grants     []string
		capability string
		want       bool
	}{
		{"exact match", []string{"net.email"}, "net.email", true},
		{"single segment wildcard", []string{"net.*"}, "net.http", true},
		{"single segment does not cross dots", []string{"*"}, "net.http", false},
		{"super wildcard", []string{"**"}, "directory.read", true},
		{"no match", []string{"net.email"}, "net.http", false},
		{"no grants", nil, "net.email", false},
		{"empty capability", []string{"**"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := capability.NewEnforcer()
			ref := core.NewScriptRef(core.NewULID())
			require.NoError(t, e.SetGrants(ref, tt.grants))
			assert.Equal(t, tt.want, e.Check(ref, tt.capability))
		})
	}
}

func TestEnforcer_UnknownScriptIsDenied(t *testing.T) {
	var e capability.Enforcer
	assert.False(t, e.Check(core.NewScriptRef(core.NewULID()), capability.NetEmail))
}

func TestEnforcer_SetGrantsIsAtomic(t *testing.T) {
	e := capability.NewEnforcer()
	ref := core.NewScriptRef(core.NewULID())
	require.NoError(t, e.SetGrants(ref, []string{"net.email"}))

	err := e.SetGrants(ref, []string{"net.http", "net.[bad"})
	errutil.AssertErrorCode(t, err, core.CodeInvalidArgument)
	assert.Equal(t, []string{"net.email"}, e.Grants(ref))

	errutil.AssertErrorCode(t, e.SetGrants(ref, []string{""}), core.CodeInvalidArgument)
	errutil.AssertErrorCode(t, e.SetGrants(core.ScriptRef{}, nil), core.CodeInvalidArgument)
}

func TestEnforcer_GrantsAreCopied(t *testing.T) {
	e := capability.NewEnforcer()
	ref := core.NewScriptRef(core.NewULID())
	require.NoError(t, e.SetGrants(ref, []string{"net.*"}))

	grants := e.Grants(ref)
	grants[0] = "**"
	assert.Equal(t, []string{"net.*"}, e.Grants(ref))
}

func TestEnforcer_RemoveAndRequire(t *testing.T) {
	e := capability.NewEnforcer()
	ref := core.NewScriptRef(core.NewULID())
	require.NoError(t, e.SetGrants(ref, []string{capability.DirectoryRead}))

	assert.NoError(t, e.Require(ref, "llRequestAgentData", capability.DirectoryRead))
	errutil.AssertErrorCode(t, e.Require(ref, "llEmail", capability.NetEmail), core.CodePermissionDenied)

	e.RemoveGrants(ref)
	assert.Nil(t, e.Grants(ref))
	errutil.AssertErrorCode(t, e.Require(ref, "llRequestAgentData", capability.DirectoryRead), core.CodePermissionDenied)
}

func TestCompile(t *testing.T) {
	assert.NoError(t, capability.Compile(capability.Known))
	assert.Error(t, capability.Compile([]string{"{unclosed"}))
}
