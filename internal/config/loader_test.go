package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoader_LoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "sentinel.yaml")

	yamlContent := `
server:
  port: 8080
  grpc_port: 6778
  dashboard: true
  log_level: debug
  cors: true
  fail_mode: closed

policies_dir: ./policies
playbooks_dir: ./playbooks

storage:
  driver: sqlite
  path: ./test.db
  retention: 168h

policies:
  - name: ExpenseApprovalPolicy
    category: financial
    context: ExpenseApprovalPolicy
    timeout: 5m
    timeout_effect: deny

tirs:
  dimension: 128
  storage_dir: ./test-snapshots

gateway:
  max_concurrent_workflows: 10
  default_timeout: 60s
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	loader := NewLoader()
	if err := loader.Load(configPath); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	cfg := loader.Get()

	// Server
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("Server.LogLevel = %q, want \"debug\"", cfg.Server.LogLevel)
	}
	if !cfg.Server.CORS {
		t.Error("Server.CORS = false, want true")
	}
	if cfg.Server.GRPCPort != 6778 {
		t.Errorf("Server.GRPCPort = %d, want 6778", cfg.Server.GRPCPort)
	}
	if cfg.Server.FailMode != "closed" {
		t.Errorf("Server.FailMode = %q, want \"closed\"", cfg.Server.FailMode)
	}
	if cfg.PoliciesDir != "./policies" {
		t.Errorf("PoliciesDir = %q, want \"./policies\"", cfg.PoliciesDir)
	}
	if cfg.PlaybooksDir != "./playbooks" {
		t.Errorf("PlaybooksDir = %q, want \"./playbooks\"", cfg.PlaybooksDir)
	}

	// Policies
	if len(cfg.Policies) != 1 {
		t.Fatalf("Policies length = %d, want 1", len(cfg.Policies))
	}
	if cfg.Policies[0].Name != "ExpenseApprovalPolicy" {
		t.Errorf("Policies[0].Name = %q, want \"ExpenseApprovalPolicy\"", cfg.Policies[0].Name)
	}
	if cfg.Policies[0].Context != "ExpenseApprovalPolicy" {
		t.Errorf("Policies[0].Context = %q, want \"ExpenseApprovalPolicy\"", cfg.Policies[0].Context)
	}

	// TIRS / Gateway
	if cfg.TIRS.Dimension != 128 {
		t.Errorf("TIRS.Dimension = %d, want 128", cfg.TIRS.Dimension)
	}
	if cfg.TIRS.StorageDir != "./test-snapshots" {
		t.Errorf("TIRS.StorageDir = %q, want \"./test-snapshots\"", cfg.TIRS.StorageDir)
	}
	if cfg.Gateway.MaxConcurrentWorkflows != 10 {
		t.Errorf("Gateway.MaxConcurrentWorkflows = %d, want 10", cfg.Gateway.MaxConcurrentWorkflows)
	}
}

func TestLoader_DefaultConfig(t *testing.T) {
	loader := NewLoader()
	cfg := loader.Get()

	if cfg.Server.Port != 6777 {
		t.Errorf("default Server.Port = %d, want 6777", cfg.Server.Port)
	}
	if cfg.Server.GRPCPort != 6778 {
		t.Errorf("default Server.GRPCPort = %d, want 6778", cfg.Server.GRPCPort)
	}
	if cfg.Server.FailMode != "closed" {
		t.Errorf("default Server.FailMode = %q, want \"closed\"", cfg.Server.FailMode)
	}
	if cfg.PoliciesDir != "./policies" {
		t.Errorf("default PoliciesDir = %q, want \"./policies\"", cfg.PoliciesDir)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("default Storage.Driver = %q, want \"sqlite\"", cfg.Storage.Driver)
	}
	if cfg.Gateway.MaxConcurrentWorkflows != 5 {
		t.Errorf("default Gateway.MaxConcurrentWorkflows = %d, want 5", cfg.Gateway.MaxConcurrentWorkflows)
	}
	if len(cfg.TIRS.Detector.Weights) == 0 {
		t.Error("default TIRS.Detector.Weights should not be empty")
	}
}

func TestLoader_LoadNonExistentFile(t *testing.T) {
	loader := NewLoader()
	err := loader.Load("/nonexistent/path/to/config.yaml")
	if err == nil {
		t.Error("Load() with nonexistent file should return error")
	}
}

func TestLoader_LoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.yaml")

	if err := os.WriteFile(configPath, []byte(`{{{invalid yaml`), 0644); err != nil {
		t.Fatalf("failed to write bad config: %v", err)
	}

	loader := NewLoader()
	err := loader.Load(configPath)
	if err == nil {
		t.Error("Load() with invalid YAML should return error")
	}
}

func TestLoader_FilePath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "sentinel.yaml")
	if err := os.WriteFile(configPath, []byte("server:\n  port: 9999\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	loader := NewLoader()
	if loader.FilePath() != "" {
		t.Errorf("FilePath() before Load() = %q, want empty", loader.FilePath())
	}

	if err := loader.Load(configPath); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if loader.FilePath() != configPath {
		t.Errorf("FilePath() = %q, want %q", loader.FilePath(), configPath)
	}
}

func TestLoader_Reload(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "sentinel.yaml")

	if err := os.WriteFile(configPath, []byte("server:\n  port: 8080\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	loader := NewLoader()
	if err := loader.Load(configPath); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if loader.Get().Server.Port != 8080 {
		t.Errorf("initial port = %d, want 8080", loader.Get().Server.Port)
	}

	if err := os.WriteFile(configPath, []byte("server:\n  port: 9999\n"), 0644); err != nil {
		t.Fatalf("failed to overwrite config: %v", err)
	}

	if err := loader.Reload(); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}

	if loader.Get().Server.Port != 9999 {
		t.Errorf("reloaded port = %d, want 9999", loader.Get().Server.Port)
	}
}

func TestLoader_ReloadWithoutLoad(t *testing.T) {
	loader := NewLoader()
	err := loader.Reload()
	if err == nil {
		t.Error("Reload() without prior Load() should return error")
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	os.Setenv("TEST_SENTINEL_PORT", "9999")
	os.Setenv("TEST_SENTINEL_SECRET", "my-secret")
	defer os.Unsetenv("TEST_SENTINEL_PORT")
	defer os.Unsetenv("TEST_SENTINEL_SECRET")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple substitution",
			input: "port: ${TEST_SENTINEL_PORT}",
			want:  "port: 9999",
		},
		{
			name:  "multiple substitutions",
			input: "port: ${TEST_SENTINEL_PORT}\nsecret: ${TEST_SENTINEL_SECRET}",
			want:  "port: 9999\nsecret: my-secret",
		},
		{
			name:  "undefined variable",
			input: "value: ${UNDEFINED_TEST_VAR_XYZ}",
			want:  "value: ",
		},
		{
			name:  "default value syntax",
			input: "value: ${UNDEFINED_TEST_VAR_XYZ:-default-val}",
			want:  "value: default-val",
		},
		{
			name:  "default value not used when env var set",
			input: "port: ${TEST_SENTINEL_PORT:-1234}",
			want:  "port: 9999",
		},
		{
			name:  "no env vars",
			input: "port: 8080",
			want:  "port: 8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := substituteEnvVars(tt.input)
			if got != tt.want {
				t.Errorf("substituteEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSubstituteEnvVars_InConfigLoad(t *testing.T) {
	os.Setenv("TEST_SENTINEL_CFG_PORT", "7777")
	defer os.Unsetenv("TEST_SENTINEL_CFG_PORT")

	dir := t.TempDir()
	configPath := filepath.Join(dir, "sentinel.yaml")

	yamlContent := `
server:
  port: ${TEST_SENTINEL_CFG_PORT}
  log_level: info
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	loader := NewLoader()
	if err := loader.Load(configPath); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	cfg := loader.Get()
	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port with env var = %d, want 7777", cfg.Server.Port)
	}
}

func TestGenerateDefault(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "sentinel.yaml")

	if err := GenerateDefault(configPath); err != nil {
		t.Fatalf("GenerateDefault() error: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read generated config: %v", err)
	}

	content := string(data)
	if len(content) == 0 {
		t.Error("generated config is empty")
	}

	loader := NewLoader()
	if err := loader.Load(configPath); err != nil {
		t.Fatalf("generated config is not valid YAML: %v", err)
	}

	cfg := loader.Get()
	if cfg.Server.Port != 6777 {
		t.Errorf("generated config port = %d, want 6777", cfg.Server.Port)
	}
}
