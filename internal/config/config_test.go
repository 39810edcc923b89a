package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.Calendar.DefaultSpanDays != 30 || cfg.Calendar.MaxSpanDays != 120 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Pricing.QuoteCacheTTL != 10*time.Minute {
		t.Fatalf("quote ttl = %v", cfg.Pricing.QuoteCacheTTL)
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Fatalf("brokers should be empty by default: %v", cfg.Kafka.Brokers)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TOURSTAY_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("TOURSTAY_CALENDAR_DEFAULT_SPAN_DAYS", "14")
	t.Setenv("TOURSTAY_QUOTE_CACHE_TTL", "90s")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Calendar.DefaultSpanDays != 14 || cfg.Pricing.QuoteCacheTTL != 90*time.Second {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"non-numeric span", "TOURSTAY_CALENDAR_MAX_SPAN_DAYS", "many", "not an integer"},
		{"bad duration", "TOURSTAY_QUOTE_CACHE_TTL", "soon", "not a duration"},
		{"default above max", "TOURSTAY_CALENDAR_DEFAULT_SPAN_DAYS", "365", "exceeds max span"},
		{"zero span", "TOURSTAY_CALENDAR_MAX_SPAN_DAYS", "0", "must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TOURSTAY_HTTP_ADDR=:9191\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// register a restore, then unset so the .env value is not shadowed
	t.Setenv("TOURSTAY_HTTP_ADDR", "")
	os.Unsetenv("TOURSTAY_HTTP_ADDR")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":9191" {
		t.Fatalf("addr = %q", cfg.HTTP.Addr)
	}
}
