package workers

import (
	"context"
	"encoding/json"
	"log/slog"

	application "bankpay/contexts/finance-core/bank-payment-service/application"
	"bankpay/contexts/finance-core/bank-payment-service/application/commands"
	"bankpay/contexts/finance-core/bank-payment-service/ports"
)

const defaultAuditConsumerGroup = "bank-payment-audit-log-cg"

// AuditLogConsumer turns each relayed audit event into one structured log
// line. Unverified payments and settlement failures are logged at error
// level since both need a human to reconcile against the bank statement.
type AuditLogConsumer struct {
	Subscriber    ports.EventSubscriber
	Topic         string
	ConsumerGroup string
	Logger        *slog.Logger
}

func (c AuditLogConsumer) Start(ctx context.Context) error {
	topic := c.Topic
	if topic == "" {
		topic = DefaultAuditTopic
	}
	group := c.ConsumerGroup
	if group == "" {
		group = defaultAuditConsumerGroup
	}
	return c.Subscriber.Subscribe(ctx, topic, group, c.Handle)
}

func (c AuditLogConsumer) Handle(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	var data commands.AuditData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		logger.Error("audit event decode failed",
			"event", "bank_payment_audit_decode_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
		return err
	}

	level := slog.LevelInfo
	switch event.EventType {
	case commands.EventOTPFailed, commands.EventPaymentFailed:
		level = slog.LevelWarn
	case commands.EventPaymentUnverified, commands.EventSettlementFailed:
		level = slog.LevelError
	}
	logger.Log(ctx, level, "bank payment audit",
		"event", "bank_payment_audit",
		"module", application.ModuleName,
		"layer", "worker",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"occurred_at", event.OccurredAt,
		"invoice_ref", data.InvoiceRef,
		"unique_id", data.UniqueID,
		"step", data.Step,
		"status", data.Status,
		"failure_kind", data.FailureKind,
		"failure", data.Failure,
		"http_status", data.HTTPStatus,
		"amount", data.Amount,
		"settlement_id", data.SettlementID,
	)
	return nil
}
