package ports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bankpay/contexts/finance-core/bank-payment-service/domain/entities"
	domainerrors "bankpay/contexts/finance-core/bank-payment-service/domain/errors"
	"bankpay/internal/shared/events"

	"github.com/shopspring/decimal"
)

// Credentials identify the caller to the bank and appear in every payload.
type Credentials struct {
	AggregatorID   string
	AggregatorName string
	CorporateID    string
	UserID         string
	URN            string
}

// BankSettings is the immutable bank configuration injected into both flows.
type BankSettings struct {
	Credentials
	OTPURL                    string
	PaymentURL                string
	APIKey                    string
	DebitAccountNo            string
	DebitLedgerAccount        string
	IFSC                      string
	PaymentMode               string
	SettlementReferencePrefix string
}

func (s BankSettings) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"aggregator id", s.AggregatorID},
		{"aggregator name", s.AggregatorName},
		{"corporate id", s.CorporateID},
		{"user id", s.UserID},
		{"urn", s.URN},
		{"otp url", s.OTPURL},
		{"payment url", s.PaymentURL},
		{"api key", s.APIKey},
		{"debit account number", s.DebitAccountNo},
		{"debit ledger account", s.DebitLedgerAccount},
	}
	for _, item := range required {
		if strings.TrimSpace(item.value) == "" {
			return domainerrors.Config("validate bank settings", fmt.Errorf("%w: %s", domainerrors.ErrMissingSetting, item.name))
		}
	}
	return nil
}

// EnvelopeRequest is the JSON body posted to both bank endpoints.
type EnvelopeRequest struct {
	RequestID            string `json:"requestId"`
	Service              string `json:"service"`
	EncryptedKey         string `json:"encryptedKey"`
	OAEPHashingAlgorithm string `json:"oaepHashingAlgorithm"`
	IV                   string `json:"iv"`
	EncryptedData        string `json:"encryptedData"`
	ClientInfo           string `json:"clientInfo"`
	OptionalParam        string `json:"optionalParam"`
}

// EnvelopeResponse carries the two fields needed for decryption plus the raw
// body, which is kept verbatim for the audit trail.
type EnvelopeResponse struct {
	EncryptedData string
	EncryptedKey  string
	Raw           []byte
	StatusCode    int
}

type BankGateway interface {
	Send(ctx context.Context, url string, apiKey string, request EnvelopeRequest) (EnvelopeResponse, error)
}

// PaymentUpdate is the in-place mutation PaymentFlow applies to an OTP record.
type PaymentUpdate struct {
	Request   string
	Response  string
	Status    entities.Status
	UpdatedAt time.Time
}

type EventEnvelope = events.Envelope

type TransactionLog interface {
	ReserveSequence(ctx context.Context, invoiceRef string) (int, error)
	CreateTransaction(ctx context.Context, txn entities.Transaction, audit EventEnvelope) error
	GetTransaction(ctx context.Context, invoiceRef string, uniqueID string) (entities.Transaction, error)
	// ClaimPayment atomically moves a payable record to Pending. Only one
	// caller can win; the others get ErrInvalidTransactionState.
	ClaimPayment(ctx context.Context, invoiceRef string, uniqueID string, claimedAt time.Time) (entities.Transaction, error)
	// UpdatePayment records the outcome of a claimed attempt.
	UpdatePayment(ctx context.Context, invoiceRef string, uniqueID string, update PaymentUpdate, audit EventEnvelope) (entities.Transaction, error)
	ListTransactions(ctx context.Context, invoiceRef string) ([]entities.Transaction, error)
	CountTransactions(ctx context.Context, invoiceRef string) (int, error)
	AppendAudit(ctx context.Context, audit EventEnvelope) error
}

// Invoice is the slice of a purchase invoice the payment step needs.
type Invoice struct {
	InvoiceRef         string
	SupplierID         string
	SupplierName       string
	Company            string
	CreditTo           string
	RoundedTotal       decimal.Decimal
	OutstandingAmount  decimal.Decimal
	BeneficiaryAccount string
	BeneficiaryIFSC    string
}

// Settlement is the payment entry created in the host ledger after a verified payment.
type Settlement struct {
	SettlementID  string
	InvoiceRef    string
	SupplierID    string
	Company       string
	Amount        decimal.Decimal
	PaidFrom      string
	PaidTo        string
	PaymentMode   string
	ReferenceNo   string
	ReferenceDate time.Time
	BankUniqueID  string
	CreatedAt     time.Time
}

type Ledger interface {
	GetInvoice(ctx context.Context, invoiceRef string) (Invoice, error)
	CreateSettlement(ctx context.Context, settlement Settlement) (string, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}
