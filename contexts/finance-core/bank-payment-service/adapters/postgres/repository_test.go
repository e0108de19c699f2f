package postgresadapter

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"bankpay/contexts/finance-core/bank-payment-service/domain/entities"
	domainerrors "bankpay/contexts/finance-core/bank-payment-service/domain/errors"
	"bankpay/contexts/finance-core/bank-payment-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// dryRunDB renders postgres SQL without opening a connection.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=127.0.0.1 port=5432 user=bankpay dbname=bankpay sslmode=disable",
	}), &gorm.Config{DisableAutomaticPing: true})
	if err != nil {
		t.Fatalf("open dry run db: %v", err)
	}
	return db
}

func assertSQL(t *testing.T, sql string, fragments ...string) {
	t.Helper()
	for _, fragment := range fragments {
		if !strings.Contains(sql, fragment) {
			t.Fatalf("sql %q missing %q", sql, fragment)
		}
	}
}

func TestTransactionModelKeepsPaymentColumnsNullUntilAttempted(t *testing.T) {
	txn, err := entities.NewTransaction("PI-1", 1, "key", "iv", "req", "resp", entities.StatusSuccess, time.Now())
	if err != nil {
		t.Fatalf("new transaction: %v", err)
	}
	row := transactionModelFromEntity(txn)
	if row.PaymentStatus != nil || row.PaymentRequest != nil || row.PaymentResponse != nil {
		t.Fatalf("payment columns must be null before the payment step")
	}
	if got := row.toEntity(); got.UniqueID != "PI-1-1" || got.PaymentAttempted() {
		t.Fatalf("unexpected round trip %+v", got)
	}

	txn.PaymentStatus = entities.StatusFailed
	txn.PaymentResponse = `{"errorCode":"X"}`
	row = transactionModelFromEntity(txn)
	if row.PaymentStatus == nil || *row.PaymentStatus != "Failed" {
		t.Fatalf("expected payment status column to be set")
	}
	if got := row.toEntity(); got.PaymentResponse != `{"errorCode":"X"}` {
		t.Fatalf("unexpected payment response %q", got.PaymentResponse)
	}
}

func TestUniqueViolationDetection(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: transactionUniqueIndex})
	if !isUniqueViolation(err) || constraintName(err) != transactionUniqueIndex {
		t.Fatalf("expected wrapped unique violation to be detected")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) || isUniqueViolation(errors.New("boom")) {
		t.Fatalf("only 23505 is a unique violation")
	}
	if constraintName(errors.New("boom")) != "" {
		t.Fatalf("expected empty constraint for plain errors")
	}
}

func TestOutboxModelRequiresEventID(t *testing.T) {
	if _, err := outboxModelFromEnvelope(ports.EventEnvelope{}); !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	row, err := outboxModelFromEnvelope(ports.EventEnvelope{EventID: "evt-1", EventType: "bank_payment.otp.succeeded", PartitionKey: "PI-1"})
	if err != nil {
		t.Fatalf("outbox model: %v", err)
	}
	if row.Status != outboxStatusPending || row.toPort().OutboxID != "evt-1" {
		t.Fatalf("unexpected outbox row %+v", row)
	}
}

func TestReserveSequenceUpsertBumpsPastExistingCount(t *testing.T) {
	db := dryRunDB(t)
	row := sequenceModel{InvoiceRef: "PI-1", LastValue: 4, UpdatedAt: time.Now().UTC()}

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return reserveSequenceQuery(tx, &row, 3)
	})
	assertSQL(t, sql,
		`INSERT INTO "bank_payment_sequences"`,
		`ON CONFLICT ("invoice_ref") DO UPDATE SET`,
		`GREATEST(bank_payment_sequences.last_value, 3) + 1`,
		`RETURNING "last_value"`,
	)
}

func TestLockTransactionSelectsForUpdate(t *testing.T) {
	db := dryRunDB(t)
	var rows []transactionModel

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return lockTransactionQuery(tx, "PI-1", "PI-1-1", &rows)
	})
	assertSQL(t, sql,
		`FROM "bank_payment_transactions"`,
		`invoice_ref = 'PI-1' AND unique_id = 'PI-1-1'`,
		`LIMIT 2`,
		`FOR UPDATE`,
	)
}

func TestClaimPaymentOnlyMatchesUnclaimedRow(t *testing.T) {
	db := dryRunDB(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return claimPaymentQuery(tx, 7, time.Now())
	})
	assertSQL(t, sql,
		`UPDATE "bank_payment_transactions"`,
		`"payment_status"='Pending'`,
		`WHERE id = 7 AND payment_status IS NULL`,
	)
}

func TestRecordPaymentRequiresPendingClaim(t *testing.T) {
	db := dryRunDB(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return recordPaymentQuery(tx, 7, ports.PaymentUpdate{
			Request:   `{"requestId":"PI-1-1"}`,
			Response:  `{"RESPONSE":"SUCCESS"}`,
			Status:    entities.StatusSuccess,
			UpdatedAt: time.Now(),
		})
	})
	assertSQL(t, sql,
		`"payment_status"='Success'`,
		`"payment_response"='{"RESPONSE":"SUCCESS"}'`,
		`WHERE id = 7 AND payment_status = 'Pending'`,
	)
}

func TestSingleTransactionRejectsZeroOrManyMatches(t *testing.T) {
	_, err := singleTransaction("update payment", nil)
	if !errors.Is(err, domainerrors.ErrTransactionNotFound) || domainerrors.KindOf(err) != domainerrors.KindNotFound {
		t.Fatalf("expected not found for no rows, got %v", err)
	}

	_, err = singleTransaction("update payment", []transactionModel{{ID: 1}, {ID: 2}})
	if !errors.Is(err, domainerrors.ErrRepositoryInvariantBroke) || domainerrors.KindOf(err) != domainerrors.KindNotFound {
		t.Fatalf("expected not found for duplicate rows, got %v", err)
	}

	row, err := singleTransaction("update payment", []transactionModel{{ID: 5, UniqueID: "PI-1-1"}})
	if err != nil || row.ID != 5 {
		t.Fatalf("expected the single row, got %+v %v", row, err)
	}
}

func TestTransactionCreateErrorMapping(t *testing.T) {
	duplicate := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: transactionUniqueIndex})
	err := transactionCreateError(duplicate)
	if !errors.Is(err, domainerrors.ErrDuplicateTransaction) || domainerrors.KindOf(err) != domainerrors.KindInvalidState {
		t.Fatalf("expected duplicate transaction, got %v", err)
	}

	other := &pgconn.PgError{Code: "23505", ConstraintName: "bank_payment_transactions_pkey"}
	if err := transactionCreateError(other); !errors.Is(err, domainerrors.ErrRepositoryInvariantBroke) {
		t.Fatalf("expected invariant error for other unique index, got %v", err)
	}

	plain := errors.New("connection reset")
	if err := transactionCreateError(plain); err != plain {
		t.Fatalf("non-constraint errors must pass through, got %v", err)
	}
}
