// Package config defines the root Sentinel configuration: server, storage,
// Compliance policy declarations, TIRS tuning, and the ambient alerting and
// sanitization settings. It is loaded from YAML via gopkg.in/yaml.v3 and
// hot-reloadable the same way internal/mdloader watches policy and playbook
// Markdown — see internal/config/watch.go.
package config

import (
	"time"

	"github.com/armoriq/sentinel/internal/sanitize"
	"github.com/armoriq/sentinel/internal/tirs"
)

// Config is the top-level Sentinel configuration.
type Config struct {
	Server       ServerConfig    `yaml:"server"`
	Storage      StorageConfig   `yaml:"storage"`
	Policies     []PolicyConfig  `yaml:"policies"`
	TIRS         TIRSConfig      `yaml:"tirs"`
	Gateway      GatewayConfig   `yaml:"gateway"`
	Reasoning    ReasoningConfig `yaml:"reasoning"`
	Alerts       AlertsConfig    `yaml:"alerts"`
	Sanitize     sanitize.Config `yaml:"sanitize"`
	PoliciesDir  string          `yaml:"policies_dir"`
	PlaybooksDir string          `yaml:"playbooks_dir"`
}

type ServerConfig struct {
	Port      int        `yaml:"port"`
	GRPCPort  int        `yaml:"grpc_port"`
	Dashboard bool       `yaml:"dashboard"`
	LogLevel  string     `yaml:"log_level"`
	CORS      bool       `yaml:"cors"`
	FailMode  string     `yaml:"fail_mode"` // "closed" = deny on error, "open" = allow on error
	Auth      AuthConfig `yaml:"auth"`
}

// AuthConfig controls the management API's token-based RBAC, per
// internal/auth.TokenManager.
type AuthConfig struct {
	Enabled  bool          `yaml:"enabled"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

type StorageConfig struct {
	Driver     string          `yaml:"driver"`
	Path       string          `yaml:"path"`
	Connection string          `yaml:"connection"`
	Retention  time.Duration   `yaml:"retention"`
	Redaction  []RedactionRule `yaml:"redaction"`
}

type RedactionRule struct {
	Pattern     string   `yaml:"pattern"`
	Replacement string   `yaml:"replacement"`
	Fields      []string `yaml:"fields"`
}

// PolicyConfig declares one Compliance policy instance. Name selects which
// policy constructor to register (e.g. "ExpenseApprovalPolicy"); Context,
// when non-empty, is the directory under PoliciesDir holding that policy's
// POLICY.md rationale doc, validated by internal/mdloader.ValidateAll.
type PolicyConfig struct {
	Name          string        `yaml:"name"`
	Category      string        `yaml:"category"` // policy.Category this instance belongs to
	Context       string        `yaml:"context"` // POLICY.md directory name, if documented
	Approvers     []string      `yaml:"approvers"`
	Timeout       time.Duration `yaml:"timeout"`
	TimeoutEffect string        `yaml:"timeout_effect"` // "deny" or "allow"
}

// TIRSConfig carries the YAML-serializable subset of tirs.Config. The
// Oracle, KillSwitch, and Logger dependencies are wired in code at startup,
// not configured from file.
type TIRSConfig struct {
	Detector   tirs.DetectorConfig `yaml:"detector"`
	Dimension  int                 `yaml:"dimension"`
	StorageDir string              `yaml:"storage_dir"`
}

// GatewayConfig mirrors gateway.Config for YAML loading.
type GatewayConfig struct {
	MaxConcurrentWorkflows int           `yaml:"max_concurrent_workflows"`
	DefaultTimeout         time.Duration `yaml:"default_timeout"`
}

// ReasoningConfig controls the optional §6 Reasoning Oracle second opinion,
// consulted only for Escalate verdicts that clear its risk gate. Disabled by
// default since it calls out to the Anthropic API per escalation.
type ReasoningConfig struct {
	Enabled bool          `yaml:"enabled"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type AlertsConfig struct {
	Slack   SlackAlertConfig   `yaml:"slack"`
	Webhook WebhookAlertConfig `yaml:"webhook"`
}

type SlackAlertConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
}

type WebhookAlertConfig struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

// DefaultConfig returns a config with sensible defaults for zero-config
// startup: SQLite storage under ./sentinel.db, the spec-mandated TIRS
// detector weights and thresholds, and a 5-workflow/300s gateway.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      6777,
			GRPCPort:  6778,
			Dashboard: true,
			LogLevel:  "info",
			CORS:      false,
			FailMode:  "closed",
		},
		PoliciesDir:  "./policies",
		PlaybooksDir: "./playbooks",
		Storage: StorageConfig{
			Driver:    "sqlite",
			Path:      "./sentinel.db",
			Retention: 30 * 24 * time.Hour,
		},
		TIRS: TIRSConfig{
			Detector:   tirs.DefaultDetectorConfig(),
			Dimension:  256,
			StorageDir: "./snapshots",
		},
		Gateway: GatewayConfig{
			MaxConcurrentWorkflows: 5,
			DefaultTimeout:         300 * time.Second,
		},
		Reasoning: ReasoningConfig{
			Enabled: false,
			Timeout: 15 * time.Second,
		},
		Sanitize: sanitize.Config{
			Enabled: true,
			Mode:    "flag",
		},
	}
}
