package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

// resetArgs pins os.Args so Load's flag parsing sees no stray test flags.
func resetArgs(t *testing.T, args ...string) {
	t.Helper()
	old := os.Args
	os.Args = append([]string{"stockrag-test"}, args...)
	t.Cleanup(func() { os.Args = old })
}

func TestLoad_Defaults(t *testing.T) {
	resetArgs(t)

	cfg, err := Load("", pflag.NewFlagSet("t", pflag.ContinueOnError))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Provider != "stub" {
		t.Errorf("expected default provider stub, got %q", cfg.Provider)
	}
	if cfg.ChunkTokens != 600 {
		t.Errorf("expected default chunk tokens 600, got %d", cfg.ChunkTokens)
	}
	if cfg.ChunkOverlap != 2 {
		t.Errorf("expected default chunk overlap 2, got %d", cfg.ChunkOverlap)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %q", cfg.LogLevel)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.TimeoutSecs != 30 {
		t.Errorf("expected default timeout 30s, got %d", cfg.TimeoutSecs)
	}
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	resetArgs(t)
	t.Setenv("STOCKRAG_PROVIDER", "openai")
	t.Setenv("STOCKRAG_DB_URL", "postgres://env-host/ragdb")
	t.Setenv("STOCKRAG_CHUNK_TOKENS", "400")
	t.Setenv("STOCKRAG_LOG_LEVEL", "debug")

	cfg, err := Load("", pflag.NewFlagSet("t", pflag.ContinueOnError))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Provider != "openai" {
		t.Errorf("expected provider openai, got %q", cfg.Provider)
	}
	if cfg.Database != "postgres://env-host/ragdb" {
		t.Errorf("expected env database, got %q", cfg.Database)
	}
	if cfg.ChunkTokens != 400 {
		t.Errorf("expected chunk tokens 400, got %d", cfg.ChunkTokens)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %q", cfg.LogLevel)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	resetArgs(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "stockrag.yaml")
	yaml := `
provider: vertexai
providerProjectID: my-project
database: postgres://yaml-host/ragdb
chunkTokens: 500
year: 2023
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, pflag.NewFlagSet("t", pflag.ContinueOnError))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Provider != "vertexai" {
		t.Errorf("expected provider vertexai, got %q", cfg.Provider)
	}
	if cfg.ProjectID != "my-project" {
		t.Errorf("expected project id my-project, got %q", cfg.ProjectID)
	}
	if cfg.Database != "postgres://yaml-host/ragdb" {
		t.Errorf("expected yaml database, got %q", cfg.Database)
	}
	if cfg.ChunkTokens != 500 {
		t.Errorf("expected chunk tokens 500, got %d", cfg.ChunkTokens)
	}
	if cfg.Year != 2023 {
		t.Errorf("expected year 2023, got %d", cfg.Year)
	}
	// Untouched values keep their defaults
	if cfg.Port != 8080 {
		t.Errorf("expected default port, got %d", cfg.Port)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	resetArgs(t)
	t.Setenv("STOCKRAG_PROVIDER", "openai")

	dir := t.TempDir()
	path := filepath.Join(dir, "stockrag.yaml")
	if err := os.WriteFile(path, []byte("provider: vertexai\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, pflag.NewFlagSet("t", pflag.ContinueOnError))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != "openai" {
		t.Errorf("env should override yaml, got %q", cfg.Provider)
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	resetArgs(t, "--provider", "stub", "--chunk-tokens", "250")
	t.Setenv("STOCKRAG_PROVIDER", "openai")

	cfg, err := Load("", pflag.NewFlagSet("t", pflag.ContinueOnError))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != "stub" {
		t.Errorf("flag should override env, got %q", cfg.Provider)
	}
	if cfg.ChunkTokens != 250 {
		t.Errorf("expected chunk tokens 250, got %d", cfg.ChunkTokens)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	resetArgs(t)

	_, err := Load("/nonexistent/stockrag.yaml", pflag.NewFlagSet("t", pflag.ContinueOnError))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "empty database",
			env:  map[string]string{"STOCKRAG_DB_URL": "   "},
		},
		{
			name: "zero chunk tokens",
			env:  map[string]string{"STOCKRAG_CHUNK_TOKENS": "0"},
		},
		{
			name: "negative chunk overlap",
			env:  map[string]string{"STOCKRAG_CHUNK_OVERLAP": "-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetArgs(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load("", pflag.NewFlagSet("t", pflag.ContinueOnError)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
