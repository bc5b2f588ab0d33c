package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.HeaderValue != "true" {
		t.Errorf("HeaderValue = %q, want %q", cfg.HeaderValue, "true")
	}
	if cfg.Listen == "" {
		t.Error("Listen should have a default")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Errorf("Load(\"\") = %+v, want Default()", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"upstream":"http://manifests.example","strip_prefix":"/z"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upstream != "http://manifests.example" {
		t.Errorf("Upstream = %q", cfg.Upstream)
	}
	if cfg.StripPrefix != "/z" {
		t.Errorf("StripPrefix = %q", cfg.StripPrefix)
	}
	if cfg.HeaderValue != "true" {
		t.Errorf("HeaderValue should keep default, got %q", cfg.HeaderValue)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := Default()
	cfg.Upstream = "http://manifests.example"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load after Save: %v", err)
	}
	if got != cfg {
		t.Errorf("Load(Save(cfg)) = %+v, want %+v", got, cfg)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing upstream")
	}
	cfg.Upstream = "http://manifests.example"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
