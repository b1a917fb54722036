package main

import (
	"testing"

	"atenea/backend/internal/config"
)

func TestValidateWorkerConfigRequiresDatabase(t *testing.T) {
	err := validateWorkerConfig(config.Config{RedisAddr: "localhost:6379"})
	if err == nil {
		t.Fatalf("expected worker without DATABASE_URL to be rejected")
	}
}

func TestValidateWorkerConfigRequiresRedis(t *testing.T) {
	err := validateWorkerConfig(config.Config{DatabaseURL: "postgres://atenea@localhost/atenea"})
	if err == nil {
		t.Fatalf("expected worker without REDIS_ADDR to be rejected")
	}
}

func TestValidateWorkerConfigAcceptsSharedStores(t *testing.T) {
	err := validateWorkerConfig(config.Config{
		DatabaseURL: "postgres://atenea@localhost/atenea",
		RedisAddr:   "localhost:6379",
	})
	if err != nil {
		t.Fatalf("expected complete worker config to pass, got %v", err)
	}
}
