package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("FRONTEND_URL", "http://localhost:3000")
}

func TestNewDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("DATA_PATH", "/tmp/adv")

	cfg, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cfg.ServerAddr != ":8080" {
		t.Errorf("ServerAddr = %q", cfg.ServerAddr)
	}
	if cfg.DbDriver != "sqlite" || cfg.DatabaseURL != "/tmp/adv/advenduro.db" {
		t.Errorf("db = %q %q", cfg.DbDriver, cfg.DatabaseURL)
	}
	if cfg.PresignPutTTL != 600*time.Second || cfg.PresignGetTTL != 300*time.Second {
		t.Errorf("ttl = %v %v", cfg.PresignPutTTL, cfg.PresignGetTTL)
	}
	if cfg.RateLimitNameChecks != 30 {
		t.Errorf("RateLimitNameChecks = %d", cfg.RateLimitNameChecks)
	}
	if cfg.GoogleLoginEnabled() {
		t.Error("google login should be disabled without credentials")
	}
	if cfg.ParsedFrontendURL.Host != "localhost:3000" {
		t.Errorf("ParsedFrontendURL = %v", cfg.ParsedFrontendURL)
	}
}

func TestNewMissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("FRONTEND_URL", "http://localhost:3000")
	if _, err := New(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}

func TestNewPgxRequiresURL(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_DRIVER", "pgx")
	t.Setenv("DATABASE_URL", "")
	if _, err := New(); err == nil {
		t.Fatal("expected error for pgx without DATABASE_URL")
	}
}

func TestNewRejectsUnknownSSE(t *testing.T) {
	setRequired(t)
	t.Setenv("S3_SSE", "rot13")
	if _, err := New(); err == nil {
		t.Fatal("expected error for unknown S3_SSE")
	}
}

func TestTelegramChatID(t *testing.T) {
	setRequired(t)
	t.Setenv("TELEGRAM_ADMIN_CHAT_ID", "-100123")
	cfg, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cfg.TelegramAdminChatID != -100123 {
		t.Errorf("TelegramAdminChatID = %d", cfg.TelegramAdminChatID)
	}
}
