package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MaintenanceConfig controls the store maintenance sweep. Each policy
// toggles independently; the zero value disables everything.
type MaintenanceConfig struct {
	NearDuplicatePrune NearDuplicatePruneConfig `yaml:"near_duplicate_prune"`
	RetentionExpire    RetentionExpireConfig    `yaml:"retention_expire"`
	SourceCap          SourceCapConfig          `yaml:"source_cap"`
}

// NearDuplicatePruneConfig prunes documents whose SimHash fingerprint is
// within MaxDistance bits of an older document's. The older document is
// always the one kept.
type NearDuplicatePruneConfig struct {
	Enabled     bool `yaml:"enabled"`
	MaxDistance int  `yaml:"max_distance"`
}

// RetentionExpireConfig prunes documents distilled more than MaxAgeDays
// ago.
type RetentionExpireConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxAgeDays int  `yaml:"max_age_days"`
}

// SourceCapConfig keeps only the newest KeepPerSource documents for each
// source and prunes the rest.
type SourceCapConfig struct {
	Enabled       bool `yaml:"enabled"`
	KeepPerSource int  `yaml:"keep_per_source"`
}

// DefaultMaintenanceConfig returns the sweep defaults: near-duplicate
// pruning on, the age- and volume-based policies off.
func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		NearDuplicatePrune: NearDuplicatePruneConfig{Enabled: true, MaxDistance: 3},
		RetentionExpire:    RetentionExpireConfig{Enabled: false, MaxAgeDays: 365},
		SourceCap:          SourceCapConfig{Enabled: false, KeepPerSource: 1000},
	}
}

// LoadMaintenanceConfig overlays the maintenance section of the YAML
// config file at path onto the defaults. A missing file is not an error;
// the defaults come back unchanged.
func LoadMaintenanceConfig(path string) (MaintenanceConfig, error) {
	cfg := DefaultMaintenanceConfig()
	if path == "" {
		path = DefaultConfigPath()
	}
	path = expandUserPath(path)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var wrapper struct {
		Maintenance *MaintenanceConfig `yaml:"maintenance"`
	}
	wrapper.Maintenance = &cfg
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return DefaultMaintenanceConfig(), fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// ValidateMaintenanceConfig rejects sweep settings that would make a
// policy meaningless.
func ValidateMaintenanceConfig(cfg MaintenanceConfig) error {
	if cfg.NearDuplicatePrune.Enabled {
		if d := cfg.NearDuplicatePrune.MaxDistance; d < 0 || d > 64 {
			return fmt.Errorf("near_duplicate_prune.max_distance must be between 0 and 64, got %d", d)
		}
	}
	if cfg.RetentionExpire.Enabled && cfg.RetentionExpire.MaxAgeDays <= 0 {
		return fmt.Errorf("retention_expire.max_age_days must be positive, got %d", cfg.RetentionExpire.MaxAgeDays)
	}
	if cfg.SourceCap.Enabled && cfg.SourceCap.KeepPerSource <= 0 {
		return fmt.Errorf("source_cap.keep_per_source must be positive, got %d", cfg.SourceCap.KeepPerSource)
	}
	return nil
}
