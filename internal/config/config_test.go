package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "UPSTREAM_BACKEND", "UPSTREAM_URL", "UPSTREAM_API_KEY", "OPENROUTER_API_KEY",
		"UPSTREAM_MAX_RETRIES", "UPSTREAM_BASE_DELAY", "UPSTREAM_MAX_DELAY", "UPSTREAM_JITTER", "UPSTREAM_ATTEMPT_TIMEOUT",
		"PIPELINE_INCLUDE_SUGGESTION", "PIPELINE_SURFACE_UPSTREAM_ERRORS", "SESSION_TTL", "SESSION_MAX", "TELEMETRY_SINK",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr %s", cfg.Server.Addr)
	}
	if cfg.Upstream.Backend != BackendChatCompletions {
		t.Fatalf("unexpected backend %s", cfg.Upstream.Backend)
	}
	if cfg.Retry.MaxRetries != 3 || cfg.Retry.BaseDelay != 500*time.Millisecond || cfg.Retry.MaxDelay != 30*time.Second {
		t.Fatalf("unexpected retry config %+v", cfg.Retry)
	}
	if cfg.Upstream.AttemptTimeout != 15*time.Second {
		t.Fatalf("unexpected attempt timeout %s", cfg.Upstream.AttemptTimeout)
	}
	if !cfg.Pipeline.IncludeSuggestion || cfg.Pipeline.SurfaceUpstreamErrors {
		t.Fatalf("unexpected pipeline config %+v", cfg.Pipeline)
	}
	if cfg.Session.TTL != 24*time.Hour || cfg.Session.MaxSessions != 10000 {
		t.Fatalf("unexpected session config %+v", cfg.Session)
	}
	if cfg.Telemetry.Sink != "noop" {
		t.Fatalf("unexpected telemetry sink %s", cfg.Telemetry.Sink)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("OPENROUTER_API_KEY", "legacy-key")
	t.Setenv("UPSTREAM_API_KEY", "")
	t.Setenv("UPSTREAM_MAX_RETRIES", "-2")
	t.Setenv("UPSTREAM_BASE_DELAY", "250")
	t.Setenv("UPSTREAM_ATTEMPT_TIMEOUT", "3s")
	t.Setenv("UPSTREAM_RETRY_CLIENT_ERRORS", "false")
	t.Setenv("UPSTREAM_MAX_DELAY", "5s")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("SESSION_MAX", "50")
	t.Setenv("TELEMETRY_SINK", "SQLite")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr %s", cfg.Server.Addr)
	}
	if cfg.Upstream.APIKey != "legacy-key" {
		t.Fatalf("expected OPENROUTER_API_KEY fallback, got %q", cfg.Upstream.APIKey)
	}
	if cfg.Retry.MaxRetries != 0 {
		t.Fatalf("expected negative retries clamped to 0, got %d", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BaseDelay != 250*time.Millisecond {
		t.Fatalf("expected bare number as milliseconds, got %s", cfg.Retry.BaseDelay)
	}
	if cfg.Upstream.AttemptTimeout != 3*time.Second {
		t.Fatalf("unexpected attempt timeout %s", cfg.Upstream.AttemptTimeout)
	}
	if cfg.Retry.RetryClientErrors {
		t.Fatal("expected client error retries disabled")
	}
	if cfg.Retry.MaxDelay != 5*time.Second {
		t.Fatalf("unexpected max delay %s", cfg.Retry.MaxDelay)
	}
	if cfg.Session.TTL != 30*time.Minute || cfg.Session.MaxSessions != 50 {
		t.Fatalf("unexpected session config %+v", cfg.Session)
	}
	if cfg.Telemetry.Sink != "sqlite" {
		t.Fatalf("expected lower-cased sink, got %s", cfg.Telemetry.Sink)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":                             "80 80",
		"UPSTREAM_BACKEND":                 "carrier-pigeon",
		"UPSTREAM_MAX_RETRIES":             "three",
		"UPSTREAM_BASE_DELAY":              "soon",
		"UPSTREAM_JITTER":                  "1.5",
		"UPSTREAM_MAX_DELAY":               "-1s",
		"SESSION_MAX":                      "0",
		"PIPELINE_SURFACE_UPSTREAM_ERRORS": "maybe",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}
}

func TestArkEnabled(t *testing.T) {
	if (ArkConfig{Model: "m"}).Enabled() {
		t.Fatal("expected ark disabled without credentials")
	}
	if !(ArkConfig{Model: "m", APIKey: "k"}).Enabled() {
		t.Fatal("expected ark enabled with api key")
	}
	if !(ArkConfig{Model: "m", AccessKey: "a", SecretKey: "s"}).Enabled() {
		t.Fatal("expected ark enabled with AK/SK")
	}
}
