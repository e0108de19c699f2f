package bootstrap

import (
	"errors"
	"log/slog"
	"testing"

	bankerrors "bankpay/contexts/finance-core/bank-payment-service/domain/errors"
	"bankpay/internal/platform/config"
)

func TestBankSettingsMapsConfig(t *testing.T) {
	settings := BankSettings(config.BankConfig{
		AggregatorID:       "AGG1",
		AggregatorName:     "Acme",
		CorporateID:        "CORP1",
		UserID:             "USER1",
		URN:                "URN1",
		OTPURL:             "https://bank.example/otp",
		PaymentURL:         "https://bank.example/pay",
		APIKey:             "key",
		DebitAccountNo:     "000405001611",
		DebitLedgerAccount: "ICICI Current - AC",
	})
	if err := settings.Validate(); err != nil {
		t.Fatalf("expected complete settings, got %v", err)
	}
	if settings.CorporateID != "CORP1" || settings.PaymentURL != "https://bank.example/pay" {
		t.Fatalf("unexpected mapping %+v", settings)
	}

	settings.APIKey = ""
	err := settings.Validate()
	if !errors.Is(err, bankerrors.ErrMissingSetting) || bankerrors.KindOf(err) != bankerrors.KindConfig {
		t.Fatalf("expected missing setting config error, got %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLogLevel(input); got != want {
			t.Fatalf("%q: expected %s, got %s", input, want, got)
		}
	}
}

func TestNormalizeAddr(t *testing.T) {
	for input, want := range map[string]string{"": ":8080", "9090": ":9090", ":7070": ":7070"} {
		if got := normalizeAddr(input); got != want {
			t.Fatalf("%q: expected %q, got %q", input, want, got)
		}
	}
}
