package main

import (
	"testing"

	"atenea/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short", AllowedOrigin: "https://caja.atenea.ar", LoginRateLimit: 5})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigRejectsWildcardOriginInProduction(t *testing.T) {
	cfg := config.Config{
		AppEnv:         "production",
		AuthSecret:     "0123456789abcdef0123456789abcdef",
		AllowedOrigin:  "*",
		LoginRateLimit: 5,
	}
	if err := validateSecurityConfig(cfg); err == nil {
		t.Fatalf("expected wildcard origin to be rejected in production")
	}

	cfg.AppEnv = "development"
	if err := validateSecurityConfig(cfg); err != nil {
		t.Fatalf("expected wildcard origin to pass in development, got %v", err)
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret:     "0123456789abcdef0123456789abcdef",
		AllowedOrigin:  "https://caja.atenea.ar",
		LoginRateLimit: 5,
	})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}
