package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads YAML params from path, layered over Default(), and validates.
func Load(path string) (Params, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads params then overrides endpoint fields from env
// vars if present. Secrets and endpoints never have to live in the YAML file.
func LoadWithEnvOverrides(path string) (Params, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("QE_ORACLE_PRIMARY_URL"); v != "" {
		cfg.Oracle.PrimaryURL = v
	}
	if v := os.Getenv("QE_ORACLE_SECONDARY_URL"); v != "" {
		cfg.Oracle.SecondaryURL = v
	}
	if v := os.Getenv("QE_SNAPSHOT_HISTORY_PATH"); v != "" {
		cfg.Snapshot.HistoryPath = v
	}
	return cfg, Validate(cfg)
}
