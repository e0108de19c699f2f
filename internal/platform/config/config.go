package config

import (
	"os"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName         string
	HTTPPort            string
	PostgresDSN         string
	PostgresAutoMigrate bool
	KafkaBrokers        []string
	LogLevel            string
	AuditTopic          string
	OutboxPollInterval  time.Duration

	Bank BankConfig
}

// BankConfig is everything the bank payment flows need, read once at startup.
type BankConfig struct {
	AggregatorID              string
	AggregatorName            string
	CorporateID               string
	UserID                    string
	URN                       string
	OTPURL                    string
	PaymentURL                string
	APIKey                    string
	DebitAccountNo            string
	DebitLedgerAccount        string
	IFSC                      string
	PaymentMode               string
	SettlementReferencePrefix string
	PublicKeyFile             string
	PrivateKeyFile            string
	RequestTimeout            time.Duration
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "bankpay"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	return Config{
		ServiceName:         service,
		HTTPPort:            port,
		PostgresDSN:         os.Getenv("POSTGRES_DSN"),
		PostgresAutoMigrate: envBool("POSTGRES_AUTO_MIGRATE", false),
		KafkaBrokers:        brokers,
		LogLevel:            envString("LOG_LEVEL", "info"),
		AuditTopic:          envString("AUDIT_TOPIC", "bank_payment.audit"),
		OutboxPollInterval:  envDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),

		Bank: BankConfig{
			AggregatorID:              envString("BANK_AGGREGATOR_ID", ""),
			AggregatorName:            envString("BANK_AGGREGATOR_NAME", ""),
			CorporateID:               envString("BANK_CORPORATE_ID", ""),
			UserID:                    envString("BANK_USER_ID", ""),
			URN:                       envString("BANK_URN", ""),
			OTPURL:                    envString("BANK_OTP_URL", ""),
			PaymentURL:                envString("BANK_PAYMENT_URL", ""),
			APIKey:                    envString("BANK_API_KEY", ""),
			DebitAccountNo:            envString("BANK_DEBIT_ACCOUNT_NO", ""),
			DebitLedgerAccount:        envString("BANK_DEBIT_LEDGER_ACCOUNT", ""),
			IFSC:                      envString("BANK_IFSC", ""),
			PaymentMode:               envString("BANK_PAYMENT_MODE", "Wire Transfer"),
			SettlementReferencePrefix: envString("BANK_SETTLEMENT_REFERENCE_PREFIX", "ICICI-"),
			PublicKeyFile:             envString("BANK_PUBLIC_KEY_FILE", ""),
			PrivateKeyFile:            envString("BANK_PRIVATE_KEY_FILE", ""),
			RequestTimeout:            envDuration("BANK_REQUEST_TIMEOUT", 30*time.Second),
		},
	}, nil
}

func envString(name string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
