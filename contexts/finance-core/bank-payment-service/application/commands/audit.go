package commands

import (
	"context"
	"encoding/json"
	"time"

	domainerrors "bankpay/contexts/finance-core/bank-payment-service/domain/errors"
	"bankpay/contexts/finance-core/bank-payment-service/ports"
)

const (
	EventOTPSucceeded      = "bank_payment.otp.succeeded"
	EventOTPFailed         = "bank_payment.otp.failed"
	EventPaymentSucceeded  = "bank_payment.payment.succeeded"
	EventPaymentFailed     = "bank_payment.payment.failed"
	EventPaymentUnverified = "bank_payment.payment.unverified"
	EventSettlementCreated = "bank_payment.settlement.created"
	EventSettlementFailed  = "bank_payment.settlement.failed"

	auditSourceService = "bank-payment-service"
	auditSchemaVersion = 1
)

// AuditData is the event payload. It never carries the OTP, session keys or
// decrypted bank responses.
type AuditData struct {
	InvoiceRef   string `json:"invoice_ref"`
	UniqueID     string `json:"unique_id"`
	Step         string `json:"step"`
	Status       string `json:"status"`
	FailureKind  string `json:"failure_kind,omitempty"`
	Failure      string `json:"failure,omitempty"`
	HTTPStatus   int    `json:"http_status,omitempty"`
	Amount       string `json:"amount,omitempty"`
	SettlementID string `json:"settlement_id,omitempty"`
}

func newAuditEvent(
	ctx context.Context,
	ids ports.IDGenerator,
	occurredAt time.Time,
	eventType string,
	data AuditData,
) (ports.EventEnvelope, error) {
	eventID, err := ids.NewID(ctx)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    auditSourceService,
		TraceID:          data.UniqueID,
		SchemaVersion:    auditSchemaVersion,
		PartitionKeyPath: "invoice_ref",
		PartitionKey:     data.InvoiceRef,
		Data:             payload,
	}, nil
}

func withFailure(data AuditData, err error) AuditData {
	if err == nil {
		return data
	}
	data.FailureKind = string(domainerrors.KindOf(err))
	data.Failure = err.Error()
	return data
}
