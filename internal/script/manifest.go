// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package script reads script.yaml manifests and turns them into scripts a
// region can run.
package script

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/holomush/simscript/internal/core"
	"github.com/holomush/simscript/internal/script/capability"
)

// ManifestFile is the name of the manifest inside a script directory.
const ManifestFile = "script.yaml"

// Manifest represents a script.yaml file.
type Manifest struct {
	Name         string     `yaml:"name" json:"name" jsonschema:"minLength=1,maxLength=64"`
	Version      string     `yaml:"version" json:"version"`
	Entry        string     `yaml:"entry" json:"entry" jsonschema:"description=Lua source file relative to the manifest"`
	Owner        string     `yaml:"owner" json:"owner" jsonschema:"description=Key of the owning agent"`
	Part         string     `yaml:"part,omitempty" json:"part,omitempty" jsonschema:"description=Key of the carrying part; generated when empty"`
	PartName     string     `yaml:"part_name,omitempty" json:"part_name,omitempty"`
	Position     string     `yaml:"position,omitempty" json:"position,omitempty" jsonschema:"description=Region position as <x, y, z>"`
	Capabilities []string   `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
	Inventory    *Inventory `yaml:"inventory,omitempty" json:"inventory,omitempty"`
}

// Inventory lists the items a script can read through llGetNotecardLine and
// llRequestInventoryData.
type Inventory struct {
	// Notecards maps a notecard name to a text file relative to the manifest.
	Notecards map[string]string `yaml:"notecards,omitempty" json:"notecards,omitempty"`
	// Landmarks maps a landmark name to a position as <x, y, z>.
	Landmarks map[string]string `yaml:"landmarks,omitempty" json:"landmarks,omitempty"`
}

const maxNameLength = 64

// namePattern validates script names: lowercase letters, digits and hyphens,
// starting with a letter and not ending with a hyphen.
var namePattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// ParseManifest parses and validates a script.yaml file.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, invalid("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, oops.Code(core.CodeInvalidArgument).Wrapf(err, "invalid YAML")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func invalid(format string, args ...any) error {
	return oops.Code(core.CodeInvalidArgument).Errorf(format, args...)
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	if !namePattern.MatchString(m.Name) {
		return invalid("name %q must start with a-z, contain only a-z, 0-9, hyphens, and not end with a hyphen", m.Name)
	}
	if len(m.Name) > maxNameLength {
		return invalid("name must be %d characters or less, got %d", maxNameLength, len(m.Name))
	}

	if m.Version == "" {
		return invalid("version is required")
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return oops.Code(core.CodeInvalidArgument).With("version", m.Version).Wrapf(err, "version must be semantic")
	}

	if m.Entry == "" {
		return invalid("entry is required")
	}
	if !strings.HasSuffix(m.Entry, ".lua") || !filepath.IsLocal(m.Entry) {
		return invalid("entry %q must be a .lua file inside the script directory", m.Entry)
	}

	if _, err := m.OwnerKey(); err != nil {
		return err
	}
	if _, err := m.PartKey(); err != nil {
		return err
	}
	if _, err := m.Pos(); err != nil {
		return err
	}
	if err := capability.Compile(m.Capabilities); err != nil {
		return err
	}
	return m.Inventory.validate()
}

func (inv *Inventory) validate() error {
	if inv == nil {
		return nil
	}
	for name, file := range inv.Notecards {
		if name == "" || !filepath.IsLocal(file) {
			return invalid("notecard %q must name a file inside the script directory", name)
		}
	}
	for name, pos := range inv.Landmarks {
		if _, err := core.ParseVector(pos); err != nil {
			return oops.Code(core.CodeInvalidArgument).With("landmark", name).Wrapf(err, "invalid landmark position")
		}
	}
	return nil
}

// OwnerKey parses the owner key.
func (m *Manifest) OwnerKey() (ulid.ULID, error) {
	if m.Owner == "" {
		return core.NullKey, invalid("owner is required")
	}
	return core.ParseULID(m.Owner)
}

// PartKey parses the part key. An empty part yields NullKey.
func (m *Manifest) PartKey() (ulid.ULID, error) {
	if m.Part == "" {
		return core.NullKey, nil
	}
	return core.ParseULID(m.Part)
}

// Pos parses the position. An empty position is the origin.
func (m *Manifest) Pos() (core.Vector, error) {
	if m.Position == "" {
		return core.Vector{}, nil
	}
	v, err := core.ParseVector(m.Position)
	if err != nil {
		return core.Vector{}, oops.Code(core.CodeInvalidArgument).With("position", m.Position).Wrapf(err, "invalid position")
	}
	return v, nil
}
