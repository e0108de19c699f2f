package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"bankpay/contexts/finance-core/bank-payment-service/domain/entities"
	domainerrors "bankpay/contexts/finance-core/bank-payment-service/domain/errors"
	"bankpay/contexts/finance-core/bank-payment-service/ports"

	"github.com/google/uuid"
)

// Store is the in-memory TransactionLog and outbox. All state changes and
// their audit events are applied under one lock.
type Store struct {
	mu sync.RWMutex

	transactions map[string]entities.Transaction
	sequences    map[string]int
	outbox       map[string]outboxRecord
	outboxSeq    int
}

type outboxRecord struct {
	Message ports.OutboxMessage
	Status  string
	SentAt  *time.Time
	Order   int
}

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
)

func NewStore() *Store {
	return &Store{
		transactions: make(map[string]entities.Transaction),
		sequences:    make(map[string]int),
		outbox:       make(map[string]outboxRecord),
	}
}

func transactionKey(invoiceRef string, uniqueID string) string {
	return strings.TrimSpace(invoiceRef) + "\x00" + strings.TrimSpace(uniqueID)
}

func (s *Store) ReserveSequence(_ context.Context, invoiceRef string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	invoiceRef = strings.TrimSpace(invoiceRef)
	if invoiceRef == "" {
		return 0, domainerrors.ErrInvalidInput
	}
	next := s.sequences[invoiceRef]
	if count := s.countLocked(invoiceRef); count > next {
		next = count
	}
	next++
	s.sequences[invoiceRef] = next
	return next, nil
}

func (s *Store) CreateTransaction(_ context.Context, txn entities.Transaction, audit ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := transactionKey(txn.InvoiceRef, txn.UniqueID)
	if _, exists := s.transactions[key]; exists {
		return domainerrors.InvalidState("create transaction", domainerrors.ErrDuplicateTransaction)
	}
	message, err := outboxMessage(audit)
	if err != nil {
		return err
	}
	if _, exists := s.outbox[message.OutboxID]; exists {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	s.transactions[key] = txn
	s.appendOutboxLocked(message)
	return nil
}

func (s *Store) GetTransaction(_ context.Context, invoiceRef string, uniqueID string) (entities.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn, ok := s.transactions[transactionKey(invoiceRef, uniqueID)]
	if !ok {
		return entities.Transaction{}, domainerrors.NotFound("get transaction", domainerrors.ErrTransactionNotFound)
	}
	return txn, nil
}

func (s *Store) ClaimPayment(_ context.Context, invoiceRef string, uniqueID string, claimedAt time.Time) (entities.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := transactionKey(invoiceRef, uniqueID)
	txn, ok := s.transactions[key]
	if !ok {
		return entities.Transaction{}, domainerrors.NotFound("claim payment", domainerrors.ErrTransactionNotFound)
	}
	claimed, err := txn.ClaimPayment(claimedAt)
	if err != nil {
		return entities.Transaction{}, domainerrors.InvalidState("claim payment", err)
	}
	s.transactions[key] = claimed
	return claimed, nil
}

func (s *Store) UpdatePayment(
	_ context.Context,
	invoiceRef string,
	uniqueID string,
	update ports.PaymentUpdate,
	audit ports.EventEnvelope,
) (entities.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := transactionKey(invoiceRef, uniqueID)
	txn, ok := s.transactions[key]
	if !ok {
		return entities.Transaction{}, domainerrors.NotFound("update payment", domainerrors.ErrTransactionNotFound)
	}
	if err := txn.EnsureClaimed(); err != nil {
		return entities.Transaction{}, domainerrors.InvalidState("update payment", err)
	}
	message, err := outboxMessage(audit)
	if err != nil {
		return entities.Transaction{}, err
	}
	if _, exists := s.outbox[message.OutboxID]; exists {
		return entities.Transaction{}, domainerrors.ErrRepositoryInvariantBroke
	}

	txn.PaymentRequest = update.Request
	txn.PaymentResponse = update.Response
	txn.PaymentStatus = update.Status
	txn.UpdatedAt = update.UpdatedAt.UTC()
	s.transactions[key] = txn
	s.appendOutboxLocked(message)
	return txn, nil
}

func (s *Store) ListTransactions(_ context.Context, invoiceRef string) ([]entities.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invoiceRef = strings.TrimSpace(invoiceRef)
	items := make([]entities.Transaction, 0)
	for _, txn := range s.transactions {
		if txn.InvoiceRef == invoiceRef {
			items = append(items, txn)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Sequence < items[j].Sequence
	})
	return items, nil
}

func (s *Store) CountTransactions(_ context.Context, invoiceRef string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countLocked(strings.TrimSpace(invoiceRef)), nil
}

func (s *Store) countLocked(invoiceRef string) int {
	count := 0
	for _, txn := range s.transactions {
		if txn.InvoiceRef == invoiceRef {
			count++
		}
	}
	return count
}

func (s *Store) AppendAudit(_ context.Context, audit ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	message, err := outboxMessage(audit)
	if err != nil {
		return err
	}
	if _, exists := s.outbox[message.OutboxID]; exists {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	s.appendOutboxLocked(message)
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows := make([]outboxRecord, 0)
	for _, row := range s.outbox {
		if row.Status == outboxStatusPending {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Order < rows[j].Order
	})
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.Message)
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxSent(_ context.Context, outboxID string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(outboxID)
	row, ok := s.outbox[id]
	if !ok {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	ts := sentAt.UTC()
	row.Status = outboxStatusSent
	row.SentAt = &ts
	s.outbox[id] = row
	return nil
}

// OutboxEvents returns every audit event written so far, pending or sent,
// in write order. Used by tests and local inspection.
func (s *Store) OutboxEvents() []ports.EventEnvelope {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]outboxRecord, 0, len(s.outbox))
	for _, row := range s.outbox {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Order < rows[j].Order
	})
	messages := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, row.Message)
	}
	items := make([]ports.EventEnvelope, 0, len(messages))
	for _, message := range messages {
		var envelope ports.EventEnvelope
		if err := json.Unmarshal(message.Payload, &envelope); err == nil {
			items = append(items, envelope)
		}
	}
	return items
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) appendOutboxLocked(message ports.OutboxMessage) {
	s.outboxSeq++
	s.outbox[message.OutboxID] = outboxRecord{Message: message, Status: outboxStatusPending, Order: s.outboxSeq}
}

func outboxMessage(envelope ports.EventEnvelope) (ports.OutboxMessage, error) {
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		return ports.OutboxMessage{}, domainerrors.ErrInvalidInput
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return ports.OutboxMessage{}, err
	}
	return ports.OutboxMessage{
		OutboxID:     outboxID,
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}, nil
}
