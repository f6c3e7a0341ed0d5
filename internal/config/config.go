// Package config loads the runtime configuration from YAML with environment
// expansion, so secrets can live in the environment instead of the file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DataRoot    string         `yaml:"data_root"`
	RulesetPath string         `yaml:"ruleset_path"`
	AuditDB     DBConfig       `yaml:"audit_db"`
	ApprovalDB  DBConfig       `yaml:"approval_db"`
	Approval    ApprovalConfig `yaml:"approval"`

	// Action types that must carry a reason, overriding the built-in set.
	ReasonRequired []string `yaml:"reason_required"`
}

type DBConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type ApprovalConfig struct {
	SigningSecret   string `yaml:"signing_secret"`
	BaseURL         string `yaml:"base_url"`
	TokenTTLSeconds int    `yaml:"token_ttl_seconds"`
}

const defaultTokenTTLSeconds = 48 * 3600

func (a ApprovalConfig) TokenTTL() time.Duration {
	ttl := a.TokenTTLSeconds
	if ttl <= 0 {
		ttl = defaultTokenTTLSeconds
	}
	return time.Duration(ttl) * time.Second
}

func Load(path string) (Config, error) {
	// #nosec G304 -- path is operator-provided config path.
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	expanded := os.ExpandEnv(string(raw))
	expanded = strings.ReplaceAll(expanded, "\r\n", "\n")

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.DataRoot == "" {
		return fmt.Errorf("data_root is required")
	}
	if c.RulesetPath == "" {
		return fmt.Errorf("ruleset_path is required")
	}

	if c.AuditDB.Driver != "" && c.AuditDB.DSN == "" {
		return fmt.Errorf("audit_db.dsn is required when audit_db.driver is set")
	}
	if c.ApprovalDB.Driver != "" && c.ApprovalDB.DSN == "" {
		return fmt.Errorf("approval_db.dsn is required when approval_db.driver is set")
	}

	if len(c.Approval.SigningSecret) > 0 && len(c.Approval.SigningSecret) < 16 {
		return fmt.Errorf("approval.signing_secret must be at least 16 bytes")
	}
	if c.Approval.BaseURL != "" && !strings.HasPrefix(c.Approval.BaseURL, "http") {
		return fmt.Errorf("approval.base_url must be an http(s) URL")
	}
	if c.Approval.TokenTTLSeconds < 0 {
		return fmt.Errorf("approval.token_ttl_seconds must not be negative")
	}

	return nil
}
