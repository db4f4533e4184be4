package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adrg/xdg"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/sergcen/npm-package-diff/errors"
)

// setupTestFS creates a memory filesystem and loads test fixtures.
// Accepts a list of fixture filenames to load from testdata directory.
func setupTestFS(t *testing.T, fixtures ...string) billy.Filesystem {
	t.Helper()
	fs := memfs.New()

	for _, fixture := range fixtures {
		data, err := os.ReadFile(filepath.Join("testdata", fixture))
		if err != nil {
			t.Fatalf("Failed to read test fixture %s: %v", fixture, err)
		}
		if err := util.WriteFile(fs, fixture, data, 0o644); err != nil {
			t.Fatalf("Failed to write fixture %s to memory fs: %v", fixture, err)
		}
	}

	return fs
}

// TestLoad_Valid tests loading a complete configuration.
func TestLoad_Valid(t *testing.T) {
	fs := setupTestFS(t, "valid.yaml")

	cfg, err := Load(fs, "valid.yaml", LoadOptions{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Registry != "s3://packages/npm" {
		t.Errorf("Expected Registry='s3://packages/npm', got %q", cfg.Registry)
	}
	if !cfg.PreferOffline || !cfg.FastCheck || !cfg.Cleanup {
		t.Errorf("Expected boolean flags to be set, got %+v", cfg)
	}
	if len(cfg.Exclude) != 3 || cfg.Exclude[1] != `/\.map$/` {
		t.Errorf("Unexpected Exclude: %q", cfg.Exclude)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("Expected Concurrency=4, got %d", cfg.Concurrency)
	}
	if cfg.Retries == nil || *cfg.Retries != 0 {
		t.Errorf("Expected explicit Retries=0, got %v", cfg.Retries)
	}
	if cfg.S3.Region != "eu-west-1" || cfg.S3.Endpoint != "http://localhost:4566" {
		t.Errorf("Unexpected S3 settings: %+v", cfg.S3)
	}
	if !cfg.OCI.PlainHTTP {
		t.Error("Expected OCI.PlainHTTP=true")
	}
}

// TestLoad_Missing tests the optional and required lookup of a missing file.
func TestLoad_Missing(t *testing.T) {
	fs := setupTestFS(t)

	cfg, err := Load(fs, DefaultFile, LoadOptions{Optional: true})
	if err != nil {
		t.Fatalf("Optional load failed: %v", err)
	}
	if cfg.Registry != "" || cfg.Retries != nil || len(cfg.Exclude) != 0 {
		t.Errorf("Expected empty config, got %+v", cfg)
	}

	_, err = Load(fs, DefaultFile, LoadOptions{})
	if err == nil {
		t.Fatal("Expected error for missing required file")
	}
	if code := errors.GetCode(err); code != errors.CodeNotFound {
		t.Errorf("Expected code %s, got %s", errors.CodeNotFound, code)
	}
}

// TestLoad_UnknownKey tests that misspelled keys are rejected.
func TestLoad_UnknownKey(t *testing.T) {
	fs := setupTestFS(t, "unknown-key.yaml")

	_, err := Load(fs, "unknown-key.yaml", LoadOptions{})
	if err == nil {
		t.Fatal("Expected error for unknown key")
	}
	if code := errors.GetCode(err); code != errors.CodeInvalidConfig {
		t.Errorf("Expected code %s, got %s", errors.CodeInvalidConfig, code)
	}
	if !strings.Contains(err.Error(), "registy") {
		t.Errorf("Expected error to name the unknown key, got: %v", err)
	}
}

// TestLoad_SkipValidation tests that invalid values load when validation is skipped.
func TestLoad_SkipValidation(t *testing.T) {
	fs := setupTestFS(t, "invalid.yaml")

	cfg, err := Load(fs, "invalid.yaml", LoadOptions{SkipValidation: true})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Concurrency != -1 {
		t.Errorf("Expected Concurrency=-1, got %d", cfg.Concurrency)
	}

	if _, err := Load(fs, "invalid.yaml", LoadOptions{}); err == nil {
		t.Error("Expected validation error")
	}
}

// TestParse_Empty tests that an empty document decodes to zero values.
func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Concurrency != 0 || cfg.Registry != "" {
		t.Errorf("Expected zero config, got %+v", cfg)
	}
}

// TestLocate tests the working directory and XDG lookup order.
func TestLocate(t *testing.T) {
	xdgHome := t.TempDir()
	t.Cleanup(xdg.Reload)
	t.Setenv("XDG_CONFIG_HOME", xdgHome)
	xdg.Reload()

	fs := memfs.New()
	if got := Locate(fs, "/work"); got != "" {
		t.Errorf("Expected no file, got %q", got)
	}

	userFile := filepath.Join(xdgHome, UserFile)
	if err := os.MkdirAll(filepath.Dir(userFile), 0o755); err != nil {
		t.Fatalf("Failed to create XDG dir: %v", err)
	}
	if err := os.WriteFile(userFile, []byte("concurrency: 2\n"), 0o644); err != nil {
		t.Fatalf("Failed to write user file: %v", err)
	}
	if got := Locate(fs, "/work"); got != userFile {
		t.Errorf("Expected %q, got %q", userFile, got)
	}

	if err := util.WriteFile(fs, "/work/"+DefaultFile, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("Failed to write local file: %v", err)
	}
	if got := Locate(fs, "/work"); got != filepath.Join("/work", DefaultFile) {
		t.Errorf("Expected working directory file, got %q", got)
	}
}
