// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package script

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/samber/oops"

	"github.com/holomush/simscript/internal/asset"
	"github.com/holomush/simscript/internal/core"
	"github.com/holomush/simscript/internal/region"
	scriptlua "github.com/holomush/simscript/internal/script/lua"
)

// Discovered is a manifest and the directory it was found in.
type Discovered struct {
	Manifest *Manifest
	Dir      string
}

// Discover finds the valid scripts directly under dir. Directories without a
// manifest or with an invalid one are logged and skipped. A missing dir
// yields no scripts.
func Discover(dir string) ([]*Discovered, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, oops.With("dir", dir).Wrapf(err, "read scripts directory")
	}

	var found []*Discovered
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		scriptDir := filepath.Join(dir, entry.Name())
		m, err := ReadManifest(scriptDir)
		if err != nil {
			slog.Warn("skipping script directory",
				"dir", entry.Name(),
				"error", err)
			continue
		}
		found = append(found, &Discovered{Manifest: m, Dir: scriptDir})
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].Manifest.Name < found[j].Manifest.Name
	})
	return found, nil
}

// ReadManifest reads, schema-checks and validates the manifest in dir.
func ReadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path) //nolint:gosec // path is built from a directory the operator chose
	if err != nil {
		return nil, oops.With("path", path).Wrapf(err, "read manifest")
	}
	if err := ValidateSchema(data); err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	return m, nil
}

// Bundle is a script ready to hand to a region: its checked source and its
// inventory.
type Bundle struct {
	Manifest  *Manifest
	Dir       string
	Inventory asset.Inventory
	Spec      region.ScriptSpec
}

// Load reads the entry and inventory of d and checks that the source
// compiles. Each call gives the script a fresh item key; the part key is
// fixed by the manifest or generated.
func Load(d *Discovered) (*Bundle, error) {
	m := d.Manifest
	entry := filepath.Join(d.Dir, m.Entry)
	src, err := os.ReadFile(entry) //nolint:gosec // entry is validated to stay inside the script directory
	if err != nil {
		return nil, oops.With("script", m.Name).With("entry", entry).Wrapf(err, "read entry")
	}
	if _, err := scriptlua.Compile(m.Name, string(src)); err != nil {
		return nil, oops.With("script", m.Name).Wrap(err)
	}

	owner, err := m.OwnerKey()
	if err != nil {
		return nil, err
	}
	part, err := m.PartKey()
	if err != nil {
		return nil, err
	}
	if part == core.NullKey {
		part = core.NewULID()
	}
	pos, err := m.Pos()
	if err != nil {
		return nil, err
	}

	var notecards, landmarkSrc map[string]string
	if m.Inventory != nil {
		notecards, landmarkSrc = m.Inventory.Notecards, m.Inventory.Landmarks
	}
	landmarks := make(map[string]core.Vector, len(landmarkSrc))
	for name, s := range landmarkSrc {
		v, err := core.ParseVector(s)
		if err != nil {
			return nil, oops.With("script", m.Name).With("landmark", name).Wrap(err)
		}
		landmarks[name] = v
	}
	inv, err := asset.LoadInventory(d.Dir, notecards, landmarks)
	if err != nil {
		return nil, oops.With("script", m.Name).Wrap(err)
	}

	partName := m.PartName
	if partName == "" {
		partName = "Object"
	}
	return &Bundle{
		Manifest:  m,
		Dir:       d.Dir,
		Inventory: inv,
		Spec: region.ScriptSpec{
			Ref:      core.NewScriptRef(part),
			Name:     m.Name,
			PartName: partName,
			Owner:    owner,
			Position: pos,
			Source:   string(src),
			Grants:   m.Capabilities,
		},
	}, nil
}

// LoadAll discovers and loads every script under dir. Scripts that fail to
// load are logged and skipped.
func LoadAll(dir string) ([]*Bundle, error) {
	found, err := Discover(dir)
	if err != nil {
		return nil, err
	}
	bundles := make([]*Bundle, 0, len(found))
	for _, d := range found {
		b, err := Load(d)
		if err != nil {
			slog.Error("failed to load script",
				"script", d.Manifest.Name,
				"error", err)
			continue
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}
