package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"conciera/internal/config"
)

func TestFromYAML(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
server:
  addr: "0.0.0.0:9000"
  base_path: /api
auth:
  jwt_secret: s3cret
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:9000" || cfg.Server.BasePath != "/api" {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Fatalf("auth = %+v", cfg.Auth)
	}
}

func TestValidateRequiresAuth(t *testing.T) {
	_, err := config.FromYAML([]byte(`
server:
  addr: "127.0.0.1:8470"
  base_path: /v0
`))
	if err == nil {
		t.Fatal("expected error without jwt secret or legacy header")
	}

	_, err = config.FromYAML([]byte(`
server:
  addr: "127.0.0.1:8470"
  base_path: /v0
auth:
  allow_legacy_auth_header: true
`))
	if err != nil {
		t.Fatalf("legacy header should satisfy auth: %v", err)
	}
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:8470" || cfg.Server.BasePath != "/v0" {
		t.Fatalf("defaults = %+v", cfg.Server)
	}
	if !cfg.Auth.AllowLegacyAuthHeader {
		t.Fatal("default must allow the legacy header for local dev")
	}
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	data := []byte("server:\n  addr: \"127.0.0.1:9999\"\n  base_path: /v1\nauth:\n  jwt_secret: x\n")
	if err := os.WriteFile(filepath.Join(dir, "conciera.yml"), data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9999" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Workspace != dir {
		t.Fatalf("workspace = %q", cfg.Workspace)
	}
}
