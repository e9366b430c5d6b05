package config

import (
	"os"
	"path/filepath"
	"testing"
)

type testOptions struct {
	Config       string
	Host         string `toml:"server.host" env:"HOST"`
	Port         int    `toml:"server.port" env:"PORT"`
	Preferences  string `toml:"preferences.path" env:"PREFERENCES"`
	LoggingLevel string `toml:"logging.level" env:"LOGGING_LEVEL"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scopeview.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
[server]
host = "0.0.0.0"
port = 9000

[preferences]
path = "/var/lib/scopeview/preferences.toml"
`)

	opts := &testOptions{Config: path, Host: "localhost", Port: 8080}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if opts.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want %q", opts.Host, "0.0.0.0")
	}
	if opts.Port != 9000 {
		t.Errorf("Port = %d, want 9000", opts.Port)
	}
	if opts.Preferences != "/var/lib/scopeview/preferences.toml" {
		t.Errorf("Preferences = %q", opts.Preferences)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9000
`)
	t.Setenv("SCOPEVIEW_PORT", "9443")

	opts := &testOptions{Config: path, Port: 8080}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if opts.Port != 9443 {
		t.Errorf("Port = %d, want env override 9443", opts.Port)
	}
}

func TestMissingFileKeepsDefaults(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "absent.toml"), Host: "localhost", Port: 8080}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if opts.Host != "localhost" || opts.Port != 8080 {
		t.Errorf("defaults clobbered: host=%q port=%d", opts.Host, opts.Port)
	}
}

func TestMalformedFileFails(t *testing.T) {
	path := writeConfig(t, `[server`)

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err == nil {
		t.Error("LoadConfig() on malformed TOML returned nil error")
	}
}

func TestFieldNameToFlag(t *testing.T) {
	cases := map[string]string{
		"Port":         "port",
		"LoggingLevel": "logging-level",
		"Host":         "host",
	}
	for in, want := range cases {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "debug"
format = "json"
stream = "warn"
devices = "debug"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "debug" || cfg.Format != "json" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Modules["stream"] != "warn" || cfg.Modules["devices"] != "debug" {
		t.Errorf("module overrides = %v", cfg.Modules)
	}
}

func TestLoadLoggingConfigDefaults(t *testing.T) {
	cfg := LoadLoggingConfig("")
	if cfg.Level != "info" || cfg.Format != "text" {
		t.Errorf("defaults = %+v", cfg)
	}
}
