package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, dir, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(contents), 0644); err != nil {
		t.Fatalf("write config.yaml: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Download.MaxConcurrent != 10 {
		t.Errorf("MaxConcurrent = %d, want 10", cfg.Download.MaxConcurrent)
	}
	if cfg.Download.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.Download.MaxAttempts)
	}
	if cfg.Transport.Port != "7645" {
		t.Errorf("Transport.Port = %q, want 7645", cfg.Transport.Port)
	}
	if cfg.HTTP.MaxCacheTTL != 86400 {
		t.Errorf("MaxCacheTTL = %d, want 86400", cfg.HTTP.MaxCacheTTL)
	}

	if !filepath.IsAbs(cfg.Runtime.DataDir) {
		t.Errorf("Runtime.DataDir = %q, want absolute path", cfg.Runtime.DataDir)
	}
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
download:
  max_concurrent: 4
transport:
  port: "9001"
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Download.MaxConcurrent != 4 {
		t.Errorf("MaxConcurrent = %d, want 4", cfg.Download.MaxConcurrent)
	}
	if cfg.Transport.Port != "9001" {
		t.Errorf("Transport.Port = %q, want 9001", cfg.Transport.Port)
	}
	// Unrelated defaults survive a partial override.
	if cfg.Download.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.Download.MaxAttempts)
	}
}

func TestLoadEnvOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
platforms:
  curseforge_api_key: "from-file"
`)

	t.Setenv("LAUNCHERD_PLATFORMS_CURSEFORGE_API_KEY", "from-env")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Platforms.CurseForgeAPIKey != "from-env" {
		t.Errorf("CurseForgeAPIKey = %q, want from-env", cfg.Platforms.CurseForgeAPIKey)
	}
}

func TestValidateConfigRejectsNonPositiveDownloadSettings(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero max_concurrent", Config{Download: DownloadConfig{MaxConcurrent: 0, MaxAttempts: 1}}},
		{"negative max_concurrent", Config{Download: DownloadConfig{MaxConcurrent: -1, MaxAttempts: 1}}},
		{"zero max_attempts", Config{Download: DownloadConfig{MaxConcurrent: 1, MaxAttempts: 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateConfig(&tt.cfg); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestValidateConfigExpandsRelativePaths(t *testing.T) {
	cfg := Config{
		Runtime: RuntimeConfig{
			DataDir:      "./data",
			InstanceDir:  "./data/instances",
			TrashDir:     "./data/trash",
			DatabasePath: "./data/launcherd.db",
		},
		Cache: CacheConfig{
			LibrariesDir: "./data/cache/libraries",
			AssetsDir:    "./data/cache/assets",
			VersionsDir:  "./data/cache/versions",
		},
		Download: DownloadConfig{MaxConcurrent: 1, MaxAttempts: 1},
	}

	if err := validateConfig(&cfg); err != nil {
		t.Fatalf("validateConfig: %v", err)
	}

	if !filepath.IsAbs(cfg.Runtime.DataDir) {
		t.Errorf("DataDir = %q, want absolute", cfg.Runtime.DataDir)
	}
	if !filepath.IsAbs(cfg.Cache.VersionsDir) {
		t.Errorf("VersionsDir = %q, want absolute", cfg.Cache.VersionsDir)
	}
}
