package configs

import (
	"strings"
	"testing"
	"time"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(env(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if !cfg.IsDevelopment() || cfg.Port != 8080 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.JWTSecret == "" || cfg.JWTTTL != 7*24*time.Hour {
		t.Fatalf("credential defaults not applied: %+v", cfg)
	}
	if cfg.StoreDriver != StoreDriverPostgres || !strings.HasPrefix(cfg.DatabaseDSN, "postgres://") {
		t.Fatalf("store defaults not applied: %+v", cfg)
	}
	if cfg.AllowedOrigins == nil || len(cfg.AllowedOrigins) != 0 {
		t.Fatalf("AllowedOrigins = %#v, want empty", cfg.AllowedOrigins)
	}
	if cfg.MessageRateLimit != 20 || cfg.MessageRateWindow != 10*time.Second {
		t.Fatalf("rate defaults not applied: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := load(env(map[string]string{
		"ENVIRONMENT":         "production",
		"PORT":                "9000",
		"ALLOWED_ORIGINS":     " https://a.example , ,https://b.example",
		"JWT_SECRET":          "s3cret",
		"JWT_TTL":             "2h",
		"STORE_DRIVER":        "MEMORY",
		"REDIS_ADDR":          "localhost:6379",
		"MESSAGE_RATE_LIMIT":  "5",
		"MESSAGE_RATE_WINDOW": "1m",
		"S3_BUCKET_NAME":      "avatars",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.IsDevelopment() || cfg.Port != 9000 || cfg.JWTTTL != 2*time.Hour {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("AllowedOrigins = %#v", cfg.AllowedOrigins)
	}
	if cfg.StoreDriver != StoreDriverMemory || cfg.DatabaseDSN != "" {
		t.Fatalf("memory driver should not need a DSN: %+v", cfg)
	}
	if cfg.MessageRateLimit != 5 || cfg.MessageRateWindow != time.Minute || cfg.S3BucketName != "avatars" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := map[string]map[string]string{
		"privileged port":       {"PORT": "80"},
		"non-numeric port":      {"PORT": "http"},
		"missing prod secret":   {"ENVIRONMENT": "production", "STORE_DRIVER": "memory"},
		"missing prod database": {"ENVIRONMENT": "production", "JWT_SECRET": "x"},
		"unknown driver":        {"STORE_DRIVER": "sqlite"},
		"bad ttl":               {"JWT_TTL": "soon"},
		"negative ttl":          {"JWT_TTL": "-1h"},
		"zero rate limit":       {"MESSAGE_RATE_LIMIT": "0"},
	}

	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := load(env(vars)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
