package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nimbusfs/nimbusfs/internal/bytesize"
)

func writeConfigFile(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `
cache_root: /var/cache/nimbusfs
mount_point: /mnt/nimbusfs
remote_base_url: https://store.example.com
part_bytes: 32Mi
flush_interval: 1m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.CacheRoot != "/var/cache/nimbusfs" {
		t.Errorf("CacheRoot = %q", cfg.CacheRoot)
	}
	if cfg.PartBytes != 32*bytesize.MiB {
		t.Errorf("PartBytes = %v, want 32MiB", cfg.PartBytes)
	}
	if cfg.FlushInterval != time.Minute {
		t.Errorf("FlushInterval = %v, want 1m", cfg.FlushInterval)
	}
	// BlockBytes and MergeGapBlocks were left unset, so defaults apply.
	if cfg.BlockBytes != 64*bytesize.KiB {
		t.Errorf("BlockBytes = %v, want default 64KiB", cfg.BlockBytes)
	}
	if cfg.MergeGapBlocks != 4 {
		t.Errorf("MergeGapBlocks = %d, want default 4", cfg.MergeGapBlocks)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Logging.Level = %q, want default INFO", cfg.Logging.Level)
	}
}

func TestLoadMissingRequiredFieldFails(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, `
mount_point: /mnt/nimbusfs
remote_base_url: https://store.example.com
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load: want error for missing cache_root, got nil")
	}
}

func TestValidateRejectsPartNotMultipleOfBlock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheRoot = "/cache"
	cfg.MountPoint = "/mnt"
	cfg.RemoteBaseURL = "https://store.example.com"
	cfg.PartBytes = 100
	cfg.BlockBytes = 64

	if err := Validate(&cfg); err == nil {
		t.Fatal("Validate: want error for part_bytes not a multiple of block_bytes, got nil")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheRoot = "/cache"
	cfg.MountPoint = "/mnt"
	cfg.RemoteBaseURL = "https://store.example.com"

	if err := Validate(&cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsShortSigningKeyWhenControlEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheRoot = "/cache"
	cfg.MountPoint = "/mnt"
	cfg.RemoteBaseURL = "https://store.example.com"
	cfg.Control.Enabled = true
	cfg.Control.SigningKey = "too-short"

	if err := Validate(&cfg); err == nil {
		t.Fatal("Validate: want error for short signing key with control enabled, got nil")
	}

	cfg.Control.SigningKey = "0123456789012345678901234567890123"
	if err := Validate(&cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadNoFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("NIMBUSFS_CACHE_ROOT", "/env/cache")
	t.Setenv("NIMBUSFS_MOUNT_POINT", "/env/mnt")
	t.Setenv("NIMBUSFS_REMOTE_BASE_URL", "https://env.example.com")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheRoot != "/env/cache" {
		t.Errorf("CacheRoot = %q, want /env/cache", cfg.CacheRoot)
	}
	if cfg.RemoteBaseURL != "https://env.example.com" {
		t.Errorf("RemoteBaseURL = %q", cfg.RemoteBaseURL)
	}
}
