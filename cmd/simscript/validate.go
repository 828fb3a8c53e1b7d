// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/samber/oops"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/spf13/cobra"

	"github.com/holomush/simscript/internal/script"
	"github.com/holomush/simscript/internal/xdg"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [DIR]",
		Short: "Check script bundles without running them",
		Long: `Validate a script bundle, or every bundle directly under DIR: the
manifest against the schema, its fields, its inventory and the Lua syntax of
its entry. DIR defaults to the scripts directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			} else {
				var err error
				if dir, err = xdg.ScriptsDir(); err != nil {
					return err
				}
			}
			return runValidate(cmd, dir)
		},
	}
}

func runValidate(cmd *cobra.Command, dir string) error {
	dirs, err := bundleDirs(dir)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		cmd.Printf("No script bundles found in %s\n", dir)
		return nil
	}

	var failed, totalBytes int
	for _, d := range dirs {
		b, err := validateBundle(d)
		if err != nil {
			failed++
			cmd.Printf("FAIL %s\n     %s\n", filepath.Base(d), describe(err))
			continue
		}
		size := len(b.Spec.Source)
		totalBytes += size
		cmd.Printf("ok   %s %s (%s, %s, %d notecard(s))\n",
			b.Manifest.Name, b.Manifest.Version, b.Manifest.Entry,
			humanize.Bytes(uint64(size)), len(b.Inventory.Notecards))
	}

	cmd.Printf("%d of %d bundle(s) valid, %s of source\n",
		len(dirs)-failed, len(dirs), humanize.Bytes(uint64(totalBytes)))
	if failed > 0 {
		return oops.Code("VALIDATION_FAILED").With("failed", failed).Errorf("%d bundle(s) failed validation", failed)
	}
	return nil
}

// bundleDirs returns dir itself when it holds a manifest, else its
// subdirectories.
func bundleDirs(dir string) ([]string, error) {
	if _, err := os.Stat(filepath.Join(dir, script.ManifestFile)); err == nil {
		return []string{dir}, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, oops.With("dir", dir).Wrapf(err, "read scripts directory")
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(dir, e.Name()))
		}
	}
	return dirs, nil
}

func validateBundle(dir string) (*script.Bundle, error) {
	m, err := script.ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	return script.Load(&script.Discovered{Manifest: m, Dir: dir})
}

func describe(err error) string {
	var verr *jsonschema.ValidationError
	if errors.As(err, &verr) {
		return script.FormatSchemaError(err)
	}
	return err.Error()
}
