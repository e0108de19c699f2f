package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, name := range []string{"SERVICE_NAME", "HTTP_PORT", "KAFKA_BROKERS", "BANK_REQUEST_TIMEOUT", "BANK_PAYMENT_MODE", "POSTGRES_AUTO_MIGRATE"} {
		t.Setenv(name, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServiceName != "bankpay" || cfg.HTTPPort != "8080" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 1 || cfg.KafkaBrokers[0] != "localhost:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.Bank.RequestTimeout != 30*time.Second || cfg.Bank.PaymentMode != "Wire Transfer" || cfg.Bank.SettlementReferencePrefix != "ICICI-" {
		t.Fatalf("unexpected bank defaults %+v", cfg.Bank)
	}
	if cfg.PostgresAutoMigrate {
		t.Fatalf("auto migrate must default to off")
	}
}

func TestLoadReadsBankSettings(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " broker-a:9092 , ,broker-b:9092")
	t.Setenv("BANK_OTP_URL", "https://bank.example/otp")
	t.Setenv("BANK_API_KEY", " key ")
	t.Setenv("BANK_REQUEST_TIMEOUT", "45s")
	t.Setenv("POSTGRES_AUTO_MIGRATE", "yes")
	t.Setenv("OUTBOX_POLL_INTERVAL", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "broker-b:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.Bank.OTPURL != "https://bank.example/otp" || cfg.Bank.APIKey != "key" {
		t.Fatalf("unexpected bank config %+v", cfg.Bank)
	}
	if cfg.Bank.RequestTimeout != 45*time.Second {
		t.Fatalf("expected 45s timeout, got %s", cfg.Bank.RequestTimeout)
	}
	if !cfg.PostgresAutoMigrate {
		t.Fatalf("expected auto migrate on")
	}
	if cfg.OutboxPollInterval != 2*time.Second {
		t.Fatalf("invalid duration must fall back, got %s", cfg.OutboxPollInterval)
	}
}
