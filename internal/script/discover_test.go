// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package script_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/simscript/internal/core"
	"github.com/holomush/simscript/internal/script"
)

func writeScript(t *testing.T, root, dir string, files map[string]string) {
	t.Helper()
	full := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(full, 0o750))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(full, name), []byte(content), 0o600))
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeScript(t, root, "b-greeter", map[string]string{
		script.ManifestFile: "name: greeter\nversion: 1.0.0\nentry: main.lua\nowner: " + owner,
	})
	writeScript(t, root, "a-door", map[string]string{
		script.ManifestFile: "name: door\nversion: 0.1.0\nentry: main.lua\nowner: " + owner,
	})
	writeScript(t, root, "broken", map[string]string{script.ManifestFile: "name: Broken"})
	writeScript(t, root, "empty", nil)
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.yaml"), []byte("x"), 0o600))

	found, err := script.Discover(root)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "door", found[0].Manifest.Name)
	assert.Equal(t, "greeter", found[1].Manifest.Name)
	assert.Equal(t, filepath.Join(root, "b-greeter"), found[1].Dir)
}

func TestDiscover_MissingDirectory(t *testing.T) {
	found, err := script.Discover(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	part := core.NewULID()
	writeScript(t, root, "greeter", map[string]string{
		script.ManifestFile: "name: greeter\nversion: 1.0.0\nentry: main.lua\nowner: " + owner +
			"\npart: " + part.String() +
			"\npart_name: Sign\nposition: <1, 2, 3>\ncapabilities: [directory.read]" +
			"\ninventory:\n  notecards:\n    lines: lines.txt\n  landmarks:\n    home: <4, 5, 6>\n",
		"main.lua":  "function state_entry() llSay(0, 'hi') end",
		"lines.txt": "first\r\nsecond\n",
	})

	found, err := script.Discover(root)
	require.NoError(t, err)
	require.Len(t, found, 1)

	b, err := script.Load(found[0])
	require.NoError(t, err)
	assert.Equal(t, part, b.Spec.Ref.PartID)
	assert.False(t, b.Spec.Ref.ItemID.IsZero())
	assert.Equal(t, "Sign", b.Spec.PartName)
	assert.Equal(t, core.Vector{X: 1, Y: 2, Z: 3}, b.Spec.Position)
	assert.Equal(t, []string{"directory.read"}, b.Spec.Grants)
	assert.Contains(t, b.Spec.Source, "state_entry")
	assert.Equal(t, []string{"first", "second"}, b.Inventory.Notecards["lines"])
	assert.Equal(t, core.Vector{X: 4, Y: 5, Z: 6}, b.Inventory.Landmarks["home"])

	again, err := script.Load(found[0])
	require.NoError(t, err)
	assert.NotEqual(t, b.Spec.Ref, again.Spec.Ref, "every load is a new item")
}

func TestLoad_Failures(t *testing.T) {
	root := t.TempDir()
	manifest := script.ManifestFile
	writeScript(t, root, "no-entry", map[string]string{
		manifest: "name: no-entry\nversion: 1.0.0\nentry: main.lua\nowner: " + owner,
	})
	writeScript(t, root, "syntax", map[string]string{
		manifest:   "name: syntax\nversion: 1.0.0\nentry: main.lua\nowner: " + owner,
		"main.lua": "function (",
	})
	writeScript(t, root, "no-card", map[string]string{
		manifest:   "name: no-card\nversion: 1.0.0\nentry: main.lua\nowner: " + owner + "\ninventory:\n  notecards:\n    x: x.txt",
		"main.lua": "",
	})
	writeScript(t, root, "fine", map[string]string{
		manifest:   "name: fine\nversion: 1.0.0\nentry: main.lua\nowner: " + owner,
		"main.lua": "",
	})

	found, err := script.Discover(root)
	require.NoError(t, err)
	require.Len(t, found, 4)
	for _, d := range found {
		_, err := script.Load(d)
		if d.Manifest.Name == "fine" {
			assert.NoError(t, err)
			continue
		}
		assert.Error(t, err, d.Manifest.Name)
	}

	bundles, err := script.LoadAll(root)
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	assert.Equal(t, "fine", bundles[0].Manifest.Name)
	assert.Equal(t, "Object", bundles[0].Spec.PartName)
}
