package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"bankpay/contexts/finance-core/bank-payment-service/adapters/memory"
	"bankpay/contexts/finance-core/bank-payment-service/application/commands"
	"bankpay/contexts/finance-core/bank-payment-service/ports"
	"bankpay/internal/platform/messaging"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []ports.EventEnvelope
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func auditEnvelope(t *testing.T, id string, eventType string, data commands.AuditData) ports.EventEnvelope {
	t.Helper()
	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal audit data: %v", err)
	}
	return ports.EventEnvelope{
		EventID:      id,
		EventType:    eventType,
		OccurredAt:   time.Now().UTC(),
		PartitionKey: data.InvoiceRef,
		Data:         payload,
	}
}

func TestOutboxRelayPublishesInWriteOrderAndMarksSent(t *testing.T) {
	store := memory.NewStore()
	for _, id := range []string{"evt-1", "evt-2", "evt-3"} {
		if err := store.AppendAudit(context.Background(), auditEnvelope(t, id, commands.EventOTPSucceeded, commands.AuditData{InvoiceRef: "PI-1"})); err != nil {
			t.Fatalf("append audit: %v", err)
		}
	}
	publisher := &recordingPublisher{}
	relay := OutboxRelay{Outbox: store, Publisher: publisher, Clock: store}

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(publisher.events) != 3 || publisher.events[0].EventID != "evt-1" || publisher.events[2].EventID != "evt-3" {
		t.Fatalf("unexpected published events %+v", publisher.events)
	}
	if publisher.topics[0] != DefaultAuditTopic {
		t.Fatalf("expected default topic, got %s", publisher.topics[0])
	}
	pending, _ := store.ListPendingOutbox(context.Background(), 10)
	if len(pending) != 0 {
		t.Fatalf("expected nothing pending, got %d", len(pending))
	}

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(publisher.events) != 3 {
		t.Fatalf("sent events must not be republished")
	}
}

func TestOutboxRelayLeavesMessagePendingWhenPublishFails(t *testing.T) {
	store := memory.NewStore()
	if err := store.AppendAudit(context.Background(), auditEnvelope(t, "evt-1", commands.EventPaymentFailed, commands.AuditData{InvoiceRef: "PI-1"})); err != nil {
		t.Fatalf("append audit: %v", err)
	}
	publishErr := errors.New("bus unavailable")
	relay := OutboxRelay{Outbox: store, Publisher: &recordingPublisher{err: publishErr}}

	if err := relay.RunOnce(context.Background()); !errors.Is(err, publishErr) {
		t.Fatalf("expected publish error, got %v", err)
	}
	pending, _ := store.ListPendingOutbox(context.Background(), 10)
	if len(pending) != 1 {
		t.Fatalf("failed publish must stay pending")
	}
}

func TestAuditLogConsumerLevels(t *testing.T) {
	var buf bytes.Buffer
	consumer := AuditLogConsumer{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	cases := []struct {
		eventType string
		level     string
	}{
		{commands.EventPaymentSucceeded, "INFO"},
		{commands.EventPaymentFailed, "WARN"},
		{commands.EventPaymentUnverified, "ERROR"},
		{commands.EventSettlementFailed, "ERROR"},
	}
	for _, tc := range cases {
		buf.Reset()
		event := auditEnvelope(t, "evt", tc.eventType, commands.AuditData{InvoiceRef: "PI-1", UniqueID: "PI-1-1", Step: "payment"})
		if err := consumer.Handle(context.Background(), event); err != nil {
			t.Fatalf("%s: handle: %v", tc.eventType, err)
		}
		var line map[string]any
		if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
			t.Fatalf("%s: decode log line: %v", tc.eventType, err)
		}
		if line["level"] != tc.level || line["unique_id"] != "PI-1-1" || line["event_type"] != tc.eventType {
			t.Fatalf("%s: unexpected log line %v", tc.eventType, line)
		}
	}

	if err := consumer.Handle(context.Background(), ports.EventEnvelope{EventID: "bad", Data: []byte("{")}); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestRelayAndConsumerOverEventBus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu  sync.Mutex
		buf bytes.Buffer
	)
	logger := slog.New(slog.NewJSONHandler(&lockedWriter{mu: &mu, w: &buf}, nil))
	bus, err := messaging.NewKafka([]string{"localhost:9092"}, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}
	consumer := AuditLogConsumer{Subscriber: bus, Logger: logger}
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("start consumer: %v", err)
	}

	store := memory.NewStore()
	if err := store.AppendAudit(ctx, auditEnvelope(t, "evt-9", commands.EventSettlementCreated, commands.AuditData{InvoiceRef: "PI-9", SettlementID: "SET-9"})); err != nil {
		t.Fatalf("append audit: %v", err)
	}
	relay := OutboxRelay{Outbox: store, Publisher: bus}
	if err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("relay: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		logged := strings.Contains(buf.String(), "SET-9")
		mu.Unlock()
		if logged {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("consumer never logged the relayed event")
}

type lockedWriter struct {
	mu *sync.Mutex
	w  *bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
