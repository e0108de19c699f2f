package postgresadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainerrors "bankpay/contexts/finance-core/bank-payment-service/domain/errors"
	"bankpay/contexts/finance-core/bank-payment-service/ports"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ledger reads purchase invoices and writes payment settlements in the host
// ledger's tables.
type Ledger struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewLedger(db *gorm.DB, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{db: db, logger: logger}
}

func (l *Ledger) GetInvoice(ctx context.Context, invoiceRef string) (ports.Invoice, error) {
	var row invoiceModel
	err := l.db.WithContext(ctx).
		Where("invoice_ref = ?", invoiceRef).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Invoice{}, domainerrors.NotFound("get invoice", domainerrors.ErrInvoiceNotFound)
		}
		return ports.Invoice{}, domainerrors.Ledger("get invoice", err)
	}
	return row.toPort(), nil
}

// CreateSettlement inserts the settlement and reduces the invoice's
// outstanding amount in one transaction.
func (l *Ledger) CreateSettlement(ctx context.Context, settlement ports.Settlement) (string, error) {
	const op = "create settlement"
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := settlementModelFromPort(settlement)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("settlement for %s already exists", settlement.BankUniqueID)
			}
			return err
		}
		result := tx.Model(&invoiceModel{}).
			Where("invoice_ref = ?", settlement.InvoiceRef).
			Update("outstanding_amount", gorm.Expr("outstanding_amount - ?", settlement.Amount))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return domainerrors.ErrInvoiceNotFound
		}
		return nil
	})
	if err != nil {
		l.logger.Error("create settlement failed",
			"event", "bank_payment_ledger_settlement_failed",
			"module", "finance-core/bank-payment-service",
			"layer", "adapter",
			"invoice_ref", settlement.InvoiceRef,
			"unique_id", settlement.BankUniqueID,
			"error", err.Error(),
		)
		return "", domainerrors.Ledger(op, err)
	}
	return settlement.SettlementID, nil
}

type invoiceModel struct {
	InvoiceRef         string          `gorm:"column:invoice_ref;primaryKey"`
	SupplierID         string          `gorm:"column:supplier_id"`
	SupplierName       string          `gorm:"column:supplier_name"`
	Company            string          `gorm:"column:company"`
	CreditTo           string          `gorm:"column:credit_to"`
	RoundedTotal       decimal.Decimal `gorm:"column:rounded_total;type:numeric(18,2)"`
	OutstandingAmount  decimal.Decimal `gorm:"column:outstanding_amount;type:numeric(18,2)"`
	BeneficiaryAccount string          `gorm:"column:beneficiary_account"`
	BeneficiaryIFSC    string          `gorm:"column:beneficiary_ifsc"`
}

func (invoiceModel) TableName() string {
	return "purchase_invoices"
}

func (m invoiceModel) toPort() ports.Invoice {
	return ports.Invoice{
		InvoiceRef:         m.InvoiceRef,
		SupplierID:         m.SupplierID,
		SupplierName:       m.SupplierName,
		Company:            m.Company,
		CreditTo:           m.CreditTo,
		RoundedTotal:       m.RoundedTotal,
		OutstandingAmount:  m.OutstandingAmount,
		BeneficiaryAccount: m.BeneficiaryAccount,
		BeneficiaryIFSC:    m.BeneficiaryIFSC,
	}
}

type settlementModel struct {
	SettlementID  string          `gorm:"column:settlement_id;primaryKey"`
	InvoiceRef    string          `gorm:"column:invoice_ref;index"`
	SupplierID    string          `gorm:"column:supplier_id"`
	Company       string          `gorm:"column:company"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(18,2)"`
	PaidFrom      string          `gorm:"column:paid_from"`
	PaidTo        string          `gorm:"column:paid_to"`
	PaymentMode   string          `gorm:"column:payment_mode"`
	ReferenceNo   string          `gorm:"column:reference_no"`
	ReferenceDate time.Time       `gorm:"column:reference_date"`
	BankUniqueID  string          `gorm:"column:bank_unique_id;uniqueIndex"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
}

func (settlementModel) TableName() string {
	return "payment_settlements"
}

func settlementModelFromPort(settlement ports.Settlement) settlementModel {
	return settlementModel{
		SettlementID:  settlement.SettlementID,
		InvoiceRef:    settlement.InvoiceRef,
		SupplierID:    settlement.SupplierID,
		Company:       settlement.Company,
		Amount:        settlement.Amount,
		PaidFrom:      settlement.PaidFrom,
		PaidTo:        settlement.PaidTo,
		PaymentMode:   settlement.PaymentMode,
		ReferenceNo:   settlement.ReferenceNo,
		ReferenceDate: settlement.ReferenceDate.UTC(),
		BankUniqueID:  settlement.BankUniqueID,
		CreatedAt:     settlement.CreatedAt.UTC(),
	}
}
