package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultMaintenanceConfig(t *testing.T) {
	cfg := DefaultMaintenanceConfig()

	if !cfg.NearDuplicatePrune.Enabled {
		t.Error("expected near-duplicate pruning enabled by default")
	}
	if cfg.NearDuplicatePrune.MaxDistance != 3 {
		t.Errorf("expected default max_distance 3, got %d", cfg.NearDuplicatePrune.MaxDistance)
	}
	if cfg.RetentionExpire.Enabled {
		t.Error("expected retention expiry disabled by default")
	}
	if cfg.SourceCap.Enabled {
		t.Error("expected source cap disabled by default")
	}
	if err := ValidateMaintenanceConfig(cfg); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadMaintenanceConfig_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := LoadMaintenanceConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error, got %v", err)
	}
	if cfg != DefaultMaintenanceConfig() {
		t.Errorf("expected defaults for missing file, got %+v", cfg)
	}
}

func TestLoadMaintenanceConfig_Overlay(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "maintenance:\n" +
		"  near_duplicate_prune:\n" +
		"    max_distance: 5\n" +
		"  retention_expire:\n" +
		"    enabled: true\n" +
		"    max_age_days: 90\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadMaintenanceConfig(cfgPath)
	if err != nil {
		t.Fatalf("LoadMaintenanceConfig: %v", err)
	}

	// Overridden fields
	if cfg.NearDuplicatePrune.MaxDistance != 5 {
		t.Errorf("expected max_distance 5, got %d", cfg.NearDuplicatePrune.MaxDistance)
	}
	if !cfg.RetentionExpire.Enabled || cfg.RetentionExpire.MaxAgeDays != 90 {
		t.Errorf("expected retention enabled at 90 days, got %+v", cfg.RetentionExpire)
	}

	// Untouched fields keep their defaults
	if !cfg.NearDuplicatePrune.Enabled {
		t.Error("expected pruning to stay enabled when the file omits it")
	}
	if cfg.SourceCap.Enabled || cfg.SourceCap.KeepPerSource != 1000 {
		t.Errorf("expected source cap defaults, got %+v", cfg.SourceCap)
	}
}

func TestLoadMaintenanceConfig_MalformedYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("maintenance: [unclosed"), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	if _, err := LoadMaintenanceConfig(cfgPath); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestValidateMaintenanceConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*MaintenanceConfig)
		wantErr string
	}{
		{
			name:    "distance too large",
			mutate:  func(c *MaintenanceConfig) { c.NearDuplicatePrune.MaxDistance = 65 },
			wantErr: "max_distance",
		},
		{
			name:    "negative distance",
			mutate:  func(c *MaintenanceConfig) { c.NearDuplicatePrune.MaxDistance = -1 },
			wantErr: "max_distance",
		},
		{
			name: "retention without age",
			mutate: func(c *MaintenanceConfig) {
				c.RetentionExpire.Enabled = true
				c.RetentionExpire.MaxAgeDays = 0
			},
			wantErr: "max_age_days",
		},
		{
			name: "source cap without keep count",
			mutate: func(c *MaintenanceConfig) {
				c.SourceCap.Enabled = true
				c.SourceCap.KeepPerSource = 0
			},
			wantErr: "keep_per_source",
		},
		{
			name:    "disabled policy skips validation",
			mutate:  func(c *MaintenanceConfig) { c.RetentionExpire.MaxAgeDays = -5 },
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultMaintenanceConfig()
			tt.mutate(&cfg)
			err := ValidateMaintenanceConfig(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}
