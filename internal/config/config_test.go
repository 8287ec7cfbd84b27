package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoadMissingPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected Load(\"\") to equal Default()")
	}
}

func TestLoadOverridesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"paths":{"stream_dir":"/custom/streams"},"mount":{"enabled":true,"read_only":false}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Paths.StreamDir != "/custom/streams" {
		t.Fatalf("StreamDir = %q", cfg.Paths.StreamDir)
	}
	if !cfg.Mount.ReadOnly {
		t.Fatalf("expected Mount.ReadOnly to be forced true regardless of config input")
	}
}

func TestValidateRequiresMountPointWhenMountEnabled(t *testing.T) {
	cfg := Default()
	cfg.Mount.Enabled = true
	cfg.Paths.MountPoint = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected Validate to require paths.mount_point when mount.enabled")
	}
}

func TestEnsureConfigFileWritesDefaultsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := EnsureConfigFile(path); err != nil {
		t.Fatalf("EnsureConfigFile: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected config file to exist: %v", err)
	}
	firstModTime := info.ModTime()

	if err := EnsureConfigFile(path); err != nil {
		t.Fatalf("EnsureConfigFile (second call): %v", err)
	}
	info, err = os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !info.ModTime().Equal(firstModTime) {
		t.Fatalf("expected EnsureConfigFile to leave an existing file untouched")
	}
}
