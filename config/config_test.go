package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SHOPREC_CATALOG__BASE_URL", "http://catalog.local:8080")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Recommend.TopN != 5 {
		t.Errorf("Recommend.TopN = %d, want 5", cfg.Recommend.TopN)
	}
	if cfg.Recommend.Weights.Collaborative != 1.5 || cfg.Recommend.Weights.Content != 1.0 {
		t.Errorf("Weights = %+v, want 1.5/1.0", cfg.Recommend.Weights)
	}
	if cfg.Catalog.Timeout != 5*time.Second {
		t.Errorf("Catalog.Timeout = %v, want 5s", cfg.Catalog.Timeout)
	}
	if cfg.Catalog.Breaker.FailureRatio != 0.6 {
		t.Errorf("Breaker.FailureRatio = %v, want 0.6", cfg.Catalog.Breaker.FailureRatio)
	}
	if cfg.Addr() != "0.0.0.0:5000" {
		t.Errorf("Addr() = %s", cfg.Addr())
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
catalog:
  base_url: http://from-file:9000
  timeout: 2s
recommend:
  top_n: 8
  weights:
    content: 0.5
content:
  max_age: 1h
`)
	t.Setenv("SHOPREC_RECOMMEND__TOP_N", "3")
	t.Setenv("SHOPREC_CATALOG__BREAKER__DISABLED", "true")
	t.Setenv("SHOPREC_SERVER__CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Catalog.BaseURL != "http://from-file:9000" {
		t.Errorf("BaseURL = %s", cfg.Catalog.BaseURL)
	}
	if cfg.Catalog.Timeout != 2*time.Second {
		t.Errorf("Catalog.Timeout = %v, want 2s", cfg.Catalog.Timeout)
	}
	if cfg.Recommend.TopN != 3 {
		t.Errorf("TopN = %d, want env override 3", cfg.Recommend.TopN)
	}
	if cfg.Recommend.Weights.Content != 0.5 || cfg.Recommend.Weights.Collaborative != 1.5 {
		t.Errorf("Weights = %+v", cfg.Recommend.Weights)
	}
	if cfg.Content.MaxAge != time.Hour {
		t.Errorf("Content.MaxAge = %v, want 1h", cfg.Content.MaxAge)
	}
	if !cfg.Catalog.Breaker.Disabled {
		t.Error("Breaker.Disabled = false, want true")
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "missing base url", yaml: "server:\n  port: 5000\n", wantErr: "BaseURL"},
		{name: "bad port", yaml: "catalog:\n  base_url: http://c\nserver:\n  port: 70000\n", wantErr: "Port"},
		{name: "zero top n", yaml: "catalog:\n  base_url: http://c\nrecommend:\n  top_n: 0\n", wantErr: "TopN"},
		{name: "bad store", yaml: "catalog:\n  base_url: http://c\nstore:\n  backend: etcd\n", wantErr: "Backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() error = nil, want missing file error")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"SHOPREC_CATALOG__BASE_URL":         "catalog.base_url",
		"SHOPREC_RATE_LIMIT__ENABLED":       "rate_limit.enabled",
		"SHOPREC_CATALOG__BREAKER__TIMEOUT": "catalog.breaker.timeout",
		"SHOPREC_CONFIG":                    "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%s) = %q, want %q", in, got, want)
		}
	}
}
