package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9091" {
		t.Fatalf("default addr: %q", cfg.Addr)
	}
	if cfg.MySQLDSN != "" || cfg.RedisAddr != "" {
		t.Fatalf("backends enabled by default: %+v", cfg)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("addr: \":8000\"\nmysql_dsn: \"file-dsn\"\ndev: true\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("STOLIK_MYSQL_DSN", "env-dsn")
	t.Setenv("STOLIK_REDIS_ADDR", "localhost:6380")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8000" {
		t.Fatalf("file addr: %q", cfg.Addr)
	}
	if !cfg.Dev {
		t.Fatalf("dev flag not read from file")
	}
	// env wins over file
	if cfg.MySQLDSN != "env-dsn" {
		t.Fatalf("env override lost: %q", cfg.MySQLDSN)
	}
	if cfg.RedisAddr != "localhost:6380" {
		t.Fatalf("env redis addr lost: %q", cfg.RedisAddr)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
