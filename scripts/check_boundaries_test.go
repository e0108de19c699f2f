package main

import (
	"os"
	"path/filepath"
	"testing"
)

const testService = "bankpay/contexts/finance-core/bank-payment-service"

func TestCheckImport(t *testing.T) {
	cases := []struct {
		layer  string
		path   string
		broken bool
	}{
		{"domain", "crypto/rsa", false},
		{"domain", testService + "/domain/errors", false},
		{"domain", testService + "/ports", true},
		{"domain", "gorm.io/gorm", true},
		{"application", testService + "/ports", false},
		{"application", "github.com/shopspring/decimal", false},
		{"application", testService + "/adapters/memory", true},
		{"application", "bankpay/internal/platform/db", true},
		{"ports", "bankpay/internal/shared/events", false},
		{"adapters", "gorm.io/gorm", false},
		{"adapters", "bankpay/contexts/identity-access/authorization-service/ports", true},
	}
	for _, tc := range cases {
		rule := checkImport(tc.layer, tc.path, testService)
		if (rule != "") != tc.broken {
			t.Fatalf("%s importing %s: expected broken=%v, got rule %q", tc.layer, tc.path, tc.broken, rule)
		}
	}
}

func TestCollectViolationsWalksServiceLayers(t *testing.T) {
	root := filepath.Join(t.TempDir(), "contexts")
	dir := filepath.Join(root, "finance-core", "bank-payment-service", "application", "commands")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	source := "package commands\n\nimport (\n\t\"context\"\n\t_ \"gorm.io/gorm\"\n)\n\nvar _ context.Context\n"
	if err := os.WriteFile(filepath.Join(dir, "bad.go"), []byte(source), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	violations := collectViolations(root)
	if len(violations) != 1 || violations[0].Import != "gorm.io/gorm" || violations[0].Line != 5 {
		t.Fatalf("unexpected violations %+v", violations)
	}
}
