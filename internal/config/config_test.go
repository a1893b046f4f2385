package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaults verifies a load with no file and no env yields a valid
// configuration.
func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Tracker.Interval != 5*time.Second {
		t.Errorf("Tracker.Interval = %v", cfg.Tracker.Interval)
	}
	if cfg.Alert.MinLead != 45*time.Minute || cfg.Alert.MaxLead != 75*time.Minute {
		t.Errorf("lead band = %v..%v", cfg.Alert.MinLead, cfg.Alert.MaxLead)
	}
	if len(cfg.Alert.SatelliteIDs) != 10 || cfg.Alert.SatelliteIDs[0] != 44235 {
		t.Errorf("SatelliteIDs = %v", cfg.Alert.SatelliteIDs)
	}
	if cfg.Alert.DedupWindow != 30*time.Minute {
		t.Errorf("DedupWindow = %v", cfg.Alert.DedupWindow)
	}
}

// TestFileOverridesDefaults verifies YAML values replace defaults.
func TestFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  addr: ":9090"
alert:
  satellite_ids: [25544]
  horizon_days: 2
logging:
  level: DEBUG
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if len(cfg.Alert.SatelliteIDs) != 1 || cfg.Alert.SatelliteIDs[0] != 25544 {
		t.Errorf("SatelliteIDs = %v", cfg.Alert.SatelliteIDs)
	}
	if cfg.Alert.HorizonDays != 2 {
		t.Errorf("HorizonDays = %d", cfg.Alert.HorizonDays)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
	// Untouched sections keep their defaults.
	if cfg.Provider.BaseURL == "" {
		t.Error("Provider.BaseURL default lost")
	}
	if cfg.Tracker.Interval != 5*time.Second {
		t.Errorf("Tracker.Interval = %v", cfg.Tracker.Interval)
	}
}

// TestEnvOverrides verifies env variables win over defaults.
func TestEnvOverrides(t *testing.T) {
	t.Setenv("PASSWATCH_HTTP_ADDR", ":7070")
	t.Setenv("PASSWATCH_DATABASE_DSN", "postgres://env/db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Database.DSN != "postgres://env/db" {
		t.Errorf("Database.DSN = %q", cfg.Database.DSN)
	}
}

// TestValidation rejects impossible settings.
func TestValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"inverted lead band", func(c *Config) { c.Alert.MinLead = 80 * time.Minute; c.Alert.MaxLead = 60 * time.Minute }},
		{"empty satellite list", func(c *Config) { c.Alert.SatelliteIDs = nil }},
		{"bad log level", func(c *Config) { c.Logging.Level = "LOUD" }},
		{"sub-second tracker interval", func(c *Config) { c.Tracker.Interval = 100 * time.Millisecond }},
		{"empty server addr", func(c *Config) { c.Server.Addr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.setDefaults()
			tt.mutate(cfg)
			if err := cfg.validate(); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

// TestMissingFile verifies a bad path is an error rather than silent
// defaults.
func TestMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
