package config

import (
	"strings"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil, "test.yml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Port != 5000 {
		t.Errorf("port = %d, want 5000", cfg.Port)
	}
	if !cfg.IsDev() {
		t.Error("default env should be development")
	}
	if cfg.Sweep.Interval != time.Minute {
		t.Errorf("sweep.interval = %s, want 1m", cfg.Sweep.Interval)
	}
	if cfg.Sweep.Staleness != time.Hour {
		t.Errorf("sweep.staleness = %s, want 1h", cfg.Sweep.Staleness)
	}
	if cfg.Mongo.Name != "shopStatusDB" {
		t.Errorf("mongo db = %q, want shopStatusDB", cfg.Mongo.Name)
	}
	if cfg.Providers.RadiusMeters != 2000 {
		t.Errorf("radius = %d, want 2000", cfg.Providers.RadiusMeters)
	}
	if got := cfg.Mongo.URI(); got != "mongodb://127.0.0.1:27017" {
		t.Errorf("mongo uri = %q", got)
	}
	if got := cfg.Redis.URLValue(); got != "redis://localhost:6379/0" {
		t.Errorf("redis url = %q", got)
	}
}

func TestParseCanonicalKeys(t *testing.T) {
	content := []byte(`
port: 8080
env: production
mongo:
  url: mongodb://db.internal:27017/shops
redis:
  host: cache.internal
  port: 6380
  db: 2
sweep:
  interval: 30s
  staleness: 2h
providers:
  google_maps_api_key: test-key
  radius_meters: 500
  cache_ttl: 5m
allowed_origins:
  - example.com
  - "*.example.org"
paths:
  logs: /var/log/opennow
  backups: /var/backups/opennow
`)
	cfg, err := Parse(content, "test.yml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Port != 8080 || cfg.IsDev() {
		t.Errorf("port/env: %d %q", cfg.Port, cfg.Env)
	}
	if got := cfg.Mongo.URI(); got != "mongodb://db.internal:27017/shops" {
		t.Errorf("mongo uri = %q", got)
	}
	if got := cfg.Redis.URLValue(); got != "redis://cache.internal:6380/2" {
		t.Errorf("redis url = %q", got)
	}
	if cfg.Sweep.Interval != 30*time.Second || cfg.Sweep.Staleness != 2*time.Hour {
		t.Errorf("sweep: %+v", cfg.Sweep)
	}
	if cfg.Providers.GoogleMapsAPIKey != "test-key" || cfg.Providers.RadiusMeters != 500 || cfg.Providers.CacheTTL != 5*time.Minute {
		t.Errorf("providers: %+v", cfg.Providers)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("origins: %v", cfg.AllowedOrigins)
	}
	if cfg.LogDir() != "/var/log/opennow" || cfg.BackupDir() != "/var/backups/opennow" {
		t.Errorf("paths: %q %q", cfg.LogDir(), cfg.BackupDir())
	}
}

func TestParseLegacyAliases(t *testing.T) {
	// Older deployments configured everything through flat dotenv-style
	// keys; those still work.
	content := []byte(`
node_env: production
mongodb_uri: mongodb://legacy:27017/shopStatusDB
redis_url: redis://legacy:6379/1
google_maps_api_key: legacy-key
cors_allowed_origins:
  - shopfront.example
tz: Asia/Kolkata
log_dir: ./logs
backup_dir: ./backups
`)
	cfg, err := Parse(content, "test.yml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.IsDev() {
		t.Error("node_env: production should not be dev")
	}
	if got := cfg.Mongo.URI(); got != "mongodb://legacy:27017/shopStatusDB" {
		t.Errorf("mongo uri = %q", got)
	}
	if got := cfg.Redis.URLValue(); got != "redis://legacy:6379/1" {
		t.Errorf("redis url = %q", got)
	}
	if cfg.Providers.GoogleMapsAPIKey != "legacy-key" {
		t.Errorf("api key = %q", cfg.Providers.GoogleMapsAPIKey)
	}
	if cfg.Timezone != "Asia/Kolkata" {
		t.Errorf("timezone = %q", cfg.Timezone)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "shopfront.example" {
		t.Errorf("origins = %v", cfg.AllowedOrigins)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", "prot: 8080", "field prot not found"},
		{"bad port", "port: 70000", "invalid port"},
		{"bad sweep interval", "sweep:\n  interval: soon", "sweep.interval"},
		{"zero staleness", "sweep:\n  staleness: 0s", "sweep.staleness"},
		{"bad cache ttl", "providers:\n  cache_ttl: fast", "cache_ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content), "test.yml")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestS3BackupEnabled(t *testing.T) {
	full := S3BackupConfig{Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s"}
	if !full.Enabled() {
		t.Error("fully configured S3 should be enabled")
	}
	if (S3BackupConfig{Bucket: "b"}).Enabled() {
		t.Error("missing credentials should disable S3")
	}
}
