package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	return path
}

func TestLoad_MissingFile_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want UTC", cfg.Timezone)
	}
	if cfg.DayOffset != 1 {
		t.Errorf("DayOffset = %d, want 1", cfg.DayOffset)
	}
	if cfg.MaxConcurrentRuns != 4 {
		t.Errorf("MaxConcurrentRuns = %d, want 4", cfg.MaxConcurrentRuns)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
timezone: Europe/Berlin
schedule: "0 1 * * *"
day_offset: 2
max_concurrent_runs: 8
report_dir: /var/reports
retry:
  max_attempts: 6
  base_backoff_ms: 100
  max_interval_ms: 2000
users:
  - id: alice
    calendars:
      - id: work
        url: https://example.com/work.ics
        name: Work
      - id: personal
        url: https://example.com/personal.ics
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Timezone != "Europe/Berlin" {
		t.Errorf("Timezone = %q, want Europe/Berlin", cfg.Timezone)
	}
	if cfg.Retry.MaxAttempts != 6 {
		t.Errorf("Retry.MaxAttempts = %d, want 6", cfg.Retry.MaxAttempts)
	}
	if len(cfg.Users) != 1 || len(cfg.Users[0].Calendars) != 2 {
		t.Fatalf("Users = %+v, want alice with 2 calendars", cfg.Users)
	}
	if cfg.Users[0].Calendars[0].URL != "https://example.com/work.ics" {
		t.Errorf("calendar url = %q", cfg.Users[0].Calendars[0].URL)
	}

	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location failed: %v", err)
	}
	if loc.String() != "Europe/Berlin" {
		t.Errorf("Location = %q, want Europe/Berlin", loc)
	}
}

func TestLoad_PartialConfig_KeepsDefaults(t *testing.T) {
	path := writeConfig(t, "timezone: America/New_York\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Timezone != "America/New_York" {
		t.Errorf("Timezone = %q", cfg.Timezone)
	}
	if cfg.Schedule != "30 0 * * *" {
		t.Errorf("Schedule = %q, want default", cfg.Schedule)
	}
}

func TestLoad_InvalidTimezone(t *testing.T) {
	path := writeConfig(t, "timezone: Mars/Olympus\n")
	if _, err := Load(path); err == nil {
		t.Error("invalid timezone accepted")
	}
}

func TestLoad_DuplicateUser(t *testing.T) {
	path := writeConfig(t, `
users:
  - id: alice
    calendars: [{id: a, url: "https://x/a.ics"}]
  - id: alice
    calendars: [{id: b, url: "https://x/b.ics"}]
`)
	if _, err := Load(path); err == nil {
		t.Error("duplicate user id accepted")
	}
}

func TestLoad_CalendarMissingURL(t *testing.T) {
	path := writeConfig(t, `
users:
  - id: alice
    calendars: [{id: a}]
`)
	if _, err := Load(path); err == nil {
		t.Error("calendar without url accepted")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "timezone: [unclosed\n")
	if _, err := Load(path); err == nil {
		t.Error("malformed yaml accepted")
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("DAYBOOK_BASE_DIR", "/srv/daybook")
	t.Setenv("DAYBOOK_CONFIG_PATH", "/etc/daybook.yaml")

	env, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv failed: %v", err)
	}
	if env.BaseDir != "/srv/daybook" {
		t.Errorf("BaseDir = %q, want /srv/daybook", env.BaseDir)
	}
	if env.ConfigPath != "/etc/daybook.yaml" {
		t.Errorf("ConfigPath = %q, want /etc/daybook.yaml", env.ConfigPath)
	}
}
