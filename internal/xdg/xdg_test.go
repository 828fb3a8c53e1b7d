// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBaseDirs(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		fn   func() (string, error)
		want string
	}{
		{"config from env", map[string]string{"XDG_CONFIG_HOME": "/custom/config"}, ConfigDir, "/custom/config/simscript"},
		{"config default", map[string]string{"XDG_CONFIG_HOME": "", "HOME": "/home/testuser"}, ConfigDir, "/home/testuser/.config/simscript"},
		{"data from env", map[string]string{"XDG_DATA_HOME": "/custom/data"}, DataDir, "/custom/data/simscript"},
		{"data default", map[string]string{"XDG_DATA_HOME": "", "HOME": "/home/testuser"}, DataDir, "/home/testuser/.local/share/simscript"},
		{"state from env", map[string]string{"XDG_STATE_HOME": "/custom/state"}, StateDir, "/custom/state/simscript"},
		{"state default", map[string]string{"XDG_STATE_HOME": "", "HOME": "/home/testuser"}, StateDir, "/home/testuser/.local/state/simscript"},
		{"config file", map[string]string{"XDG_CONFIG_HOME": "/custom/config"}, ConfigFile, "/custom/config/simscript/config.yaml"},
		{"scripts dir", map[string]string{"XDG_DATA_HOME": "/custom/data"}, ScriptsDir, "/custom/data/simscript/scripts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			got, err := tt.fn()
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfigDir_NoHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "")
	if _, err := ConfigDir(); err == nil {
		t.Error("ConfigDir() expected error without HOME")
	}

	t.Setenv("XDG_DATA_HOME", "/d")
	if _, err := ScriptsDir(); err != nil {
		t.Errorf("ScriptsDir() error = %v", err)
	}
}

func TestEnsureDir(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "nested", "dir")

	if err := EnsureDir(testPath); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	info, err := os.Stat(testPath)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if !info.IsDir() {
		t.Error("Expected directory, got file")
	}
	if perm := info.Mode().Perm(); perm != 0o700 {
		t.Errorf("EnsureDir() permissions = %o, want %o", perm, 0o700)
	}
	if err := EnsureDir(testPath); err != nil {
		t.Fatalf("second EnsureDir() error = %v", err)
	}
}
