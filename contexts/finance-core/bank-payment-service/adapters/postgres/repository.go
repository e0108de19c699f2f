package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"bankpay/contexts/finance-core/bank-payment-service/domain/entities"
	domainerrors "bankpay/contexts/finance-core/bank-payment-service/domain/errors"
	"bankpay/contexts/finance-core/bank-payment-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"

	transactionUniqueIndex = "bank_payment_transactions_ref_unique_id"
)

// Repository is the Postgres TransactionLog and outbox.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates or updates every table this context owns.
func Migrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(
		&transactionModel{},
		&sequenceModel{},
		&outboxModel{},
		&invoiceModel{},
		&settlementModel{},
	)
}

// ReserveSequence bumps the per-invoice counter row and returns the new value.
// The row is seeded from the existing transaction count so invoices recorded
// before the counter existed keep their numbering.
func (r *Repository) ReserveSequence(ctx context.Context, invoiceRef string) (int, error) {
	var next int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&transactionModel{}).
			Where("invoice_ref = ?", invoiceRef).
			Count(&existing).
			Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		row := sequenceModel{
			InvoiceRef: invoiceRef,
			LastValue:  int(existing) + 1,
			UpdatedAt:  now,
		}
		if err := reserveSequenceQuery(tx, &row, existing).Error; err != nil {
			return err
		}
		next = row.LastValue
		return nil
	})
	if err != nil {
		r.logger.Error("reserve sequence failed",
			"event", "bank_payment_reserve_sequence_failed",
			"module", "finance-core/bank-payment-service",
			"layer", "adapter",
			"invoice_ref", invoiceRef,
			"error", err.Error(),
		)
		return 0, err
	}
	return next, nil
}

func (r *Repository) CreateTransaction(ctx context.Context, txn entities.Transaction, audit ports.EventEnvelope) error {
	outboxRow, err := outboxModelFromEnvelope(audit)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := transactionModelFromEntity(txn)
		if err := tx.Create(&row).Error; err != nil {
			return transactionCreateError(err)
		}
		return createOutbox(tx, outboxRow)
	})
}

func (r *Repository) GetTransaction(ctx context.Context, invoiceRef string, uniqueID string) (entities.Transaction, error) {
	var row transactionModel
	err := r.db.WithContext(ctx).
		Where("invoice_ref = ? AND unique_id = ?", invoiceRef, uniqueID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Transaction{}, domainerrors.NotFound("get transaction", domainerrors.ErrTransactionNotFound)
		}
		return entities.Transaction{}, err
	}
	return row.toEntity(), nil
}

// ClaimPayment locks the record, checks it is still payable and marks it
// Pending in the same database transaction. A concurrent claimer blocks on the
// row lock and then sees the Pending status.
func (r *Repository) ClaimPayment(ctx context.Context, invoiceRef string, uniqueID string, claimedAt time.Time) (entities.Transaction, error) {
	const op = "claim payment"
	var claimed entities.Transaction
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockTransaction(tx, op, invoiceRef, uniqueID)
		if err != nil {
			return err
		}
		next, err := row.toEntity().ClaimPayment(claimedAt)
		if err != nil {
			return domainerrors.InvalidState(op, err)
		}
		result := claimPaymentQuery(tx, row.ID, next.UpdatedAt)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return domainerrors.InvalidState(op, domainerrors.ErrInvalidTransactionState)
		}
		claimed = next
		return nil
	})
	if err != nil {
		return entities.Transaction{}, err
	}
	return claimed, nil
}

// UpdatePayment records the outcome of a claimed attempt. Exactly one row
// must match and it must still be Pending.
func (r *Repository) UpdatePayment(
	ctx context.Context,
	invoiceRef string,
	uniqueID string,
	update ports.PaymentUpdate,
	audit ports.EventEnvelope,
) (entities.Transaction, error) {
	const op = "update payment"
	outboxRow, err := outboxModelFromEnvelope(audit)
	if err != nil {
		return entities.Transaction{}, err
	}

	var updated entities.Transaction
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := lockTransaction(tx, op, invoiceRef, uniqueID)
		if err != nil {
			return err
		}
		if err := row.toEntity().EnsureClaimed(); err != nil {
			return domainerrors.InvalidState(op, err)
		}

		status := string(update.Status)
		row.PaymentRequest = &update.Request
		row.PaymentResponse = &update.Response
		row.PaymentStatus = &status
		row.UpdatedAt = update.UpdatedAt.UTC()

		result := recordPaymentQuery(tx, row.ID, update)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return domainerrors.ErrRepositoryInvariantBroke
		}
		if err := createOutbox(tx, outboxRow); err != nil {
			return err
		}
		updated = row.toEntity()
		return nil
	})
	if err != nil {
		return entities.Transaction{}, err
	}
	return updated, nil
}

func (r *Repository) ListTransactions(ctx context.Context, invoiceRef string) ([]entities.Transaction, error) {
	var rows []transactionModel
	if err := r.db.WithContext(ctx).
		Where("invoice_ref = ?", invoiceRef).
		Order("sequence ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.Transaction, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) CountTransactions(ctx context.Context, invoiceRef string) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&transactionModel{}).
		Where("invoice_ref = ?", invoiceRef).
		Count(&count).
		Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *Repository) AppendAudit(ctx context.Context, audit ports.EventEnvelope) error {
	row, err := outboxModelFromEnvelope(audit)
	if err != nil {
		return err
	}
	return createOutbox(r.db.WithContext(ctx), row)
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toPort())
	}
	return items, nil
}

func (r *Repository) MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":  outboxStatusSent,
			"sent_at": sentAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	return nil
}

func reserveSequenceQuery(tx *gorm.DB, row *sequenceModel, existing int64) *gorm.DB {
	return tx.Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "invoice_ref"}},
			DoUpdates: clause.Assignments(map[string]any{
				"last_value": gorm.Expr("GREATEST(bank_payment_sequences.last_value, ?) + 1", existing),
				"updated_at": row.UpdatedAt,
			}),
		},
		clause.Returning{Columns: []clause.Column{{Name: "last_value"}}},
	).Create(row)
}

func lockTransactionQuery(tx *gorm.DB, invoiceRef string, uniqueID string, rows *[]transactionModel) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("invoice_ref = ? AND unique_id = ?", invoiceRef, uniqueID).
		Limit(2).
		Find(rows)
}

func lockTransaction(tx *gorm.DB, op string, invoiceRef string, uniqueID string) (transactionModel, error) {
	var rows []transactionModel
	if err := lockTransactionQuery(tx, invoiceRef, uniqueID, &rows).Error; err != nil {
		return transactionModel{}, err
	}
	return singleTransaction(op, rows)
}

// singleTransaction treats zero matches and more than one match as not found.
func singleTransaction(op string, rows []transactionModel) (transactionModel, error) {
	switch len(rows) {
	case 0:
		return transactionModel{}, domainerrors.NotFound(op, domainerrors.ErrTransactionNotFound)
	case 1:
		return rows[0], nil
	default:
		return transactionModel{}, domainerrors.NotFound(op, domainerrors.ErrRepositoryInvariantBroke)
	}
}

func claimPaymentQuery(tx *gorm.DB, id uint64, claimedAt time.Time) *gorm.DB {
	return tx.Model(&transactionModel{}).
		Where("id = ? AND payment_status IS NULL", id).
		Updates(map[string]any{
			"payment_status": string(entities.StatusPending),
			"updated_at":     claimedAt.UTC(),
		})
}

func recordPaymentQuery(tx *gorm.DB, id uint64, update ports.PaymentUpdate) *gorm.DB {
	return tx.Model(&transactionModel{}).
		Where("id = ? AND payment_status = ?", id, string(entities.StatusPending)).
		Updates(map[string]any{
			"payment_request":  update.Request,
			"payment_response": update.Response,
			"payment_status":   string(update.Status),
			"updated_at":       update.UpdatedAt.UTC(),
		})
}

func transactionCreateError(err error) error {
	if !isUniqueViolation(err) {
		return err
	}
	if constraintName(err) == transactionUniqueIndex {
		return domainerrors.InvalidState("create transaction", domainerrors.ErrDuplicateTransaction)
	}
	return domainerrors.ErrRepositoryInvariantBroke
}

type transactionModel struct {
	ID              uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	InvoiceRef      string    `gorm:"column:invoice_ref;not null;uniqueIndex:bank_payment_transactions_ref_unique_id,priority:1"`
	UniqueID        string    `gorm:"column:unique_id;not null;uniqueIndex:bank_payment_transactions_ref_unique_id,priority:2"`
	Sequence        int       `gorm:"column:sequence;not null"`
	SessionKey      string    `gorm:"column:session_key"`
	IV              string    `gorm:"column:iv"`
	OTPRequest      string    `gorm:"column:otp_request;type:text"`
	OTPResponse     string    `gorm:"column:otp_response;type:text"`
	OTPStatus       string    `gorm:"column:otp_status;not null"`
	PaymentRequest  *string   `gorm:"column:payment_request;type:text"`
	PaymentResponse *string   `gorm:"column:payment_response;type:text"`
	PaymentStatus   *string   `gorm:"column:payment_status"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (transactionModel) TableName() string {
	return "bank_payment_transactions"
}

func transactionModelFromEntity(txn entities.Transaction) transactionModel {
	row := transactionModel{
		InvoiceRef:  txn.InvoiceRef,
		UniqueID:    txn.UniqueID,
		Sequence:    txn.Sequence,
		SessionKey:  txn.SessionKey,
		IV:          txn.IV,
		OTPRequest:  txn.OTPRequest,
		OTPResponse: txn.OTPResponse,
		OTPStatus:   string(txn.OTPStatus),
		CreatedAt:   txn.CreatedAt.UTC(),
		UpdatedAt:   txn.UpdatedAt.UTC(),
	}
	if txn.PaymentAttempted() {
		status := string(txn.PaymentStatus)
		request := txn.PaymentRequest
		response := txn.PaymentResponse
		row.PaymentStatus = &status
		row.PaymentRequest = &request
		row.PaymentResponse = &response
	}
	return row
}

func (m transactionModel) toEntity() entities.Transaction {
	txn := entities.Transaction{
		InvoiceRef:  m.InvoiceRef,
		UniqueID:    m.UniqueID,
		Sequence:    m.Sequence,
		SessionKey:  m.SessionKey,
		IV:          m.IV,
		OTPRequest:  m.OTPRequest,
		OTPResponse: m.OTPResponse,
		OTPStatus:   entities.Status(m.OTPStatus),
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
	if m.PaymentRequest != nil {
		txn.PaymentRequest = *m.PaymentRequest
	}
	if m.PaymentResponse != nil {
		txn.PaymentResponse = *m.PaymentResponse
	}
	if m.PaymentStatus != nil {
		txn.PaymentStatus = entities.Status(*m.PaymentStatus)
	}
	return txn
}

type sequenceModel struct {
	InvoiceRef string    `gorm:"column:invoice_ref;primaryKey"`
	LastValue  int       `gorm:"column:last_value;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (sequenceModel) TableName() string {
	return "bank_payment_sequences"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	SentAt       *time.Time `gorm:"column:sent_at"`
}

func (outboxModel) TableName() string {
	return "bank_payment_outbox"
}

func outboxModelFromEnvelope(envelope ports.EventEnvelope) (outboxModel, error) {
	if strings.TrimSpace(envelope.EventID) == "" {
		return outboxModel{}, domainerrors.ErrInvalidInput
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return outboxModel{}, err
	}
	return outboxModel{
		OutboxID:     envelope.EventID,
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}, nil
}

func (m outboxModel) toPort() ports.OutboxMessage {
	return ports.OutboxMessage{
		OutboxID:     m.OutboxID,
		EventType:    m.EventType,
		PartitionKey: m.PartitionKey,
		Payload:      append([]byte(nil), m.Payload...),
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

func createOutbox(tx *gorm.DB, row outboxModel) error {
	if err := tx.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrRepositoryInvariantBroke
		}
		return err
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}
