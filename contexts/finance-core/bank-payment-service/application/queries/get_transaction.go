package queries

import (
	"context"
	"log/slog"
	"strings"

	application "bankpay/contexts/finance-core/bank-payment-service/application"
	"bankpay/contexts/finance-core/bank-payment-service/domain/entities"
	domainerrors "bankpay/contexts/finance-core/bank-payment-service/domain/errors"
	"bankpay/contexts/finance-core/bank-payment-service/ports"
)

type GetTransactionQuery struct {
	InvoiceRef string
	UniqueID   string
}

type GetTransactionUseCase struct {
	Transactions ports.TransactionLog
	Logger       *slog.Logger
}

func (u GetTransactionUseCase) Execute(ctx context.Context, query GetTransactionQuery) (entities.Transaction, error) {
	logger := application.ResolveLogger(u.Logger)
	invoiceRef := strings.TrimSpace(query.InvoiceRef)
	uniqueID := strings.TrimSpace(query.UniqueID)
	if invoiceRef == "" || uniqueID == "" {
		return entities.Transaction{}, domainerrors.InvalidInput("get transaction", domainerrors.ErrInvalidInput)
	}

	txn, err := u.Transactions.GetTransaction(ctx, invoiceRef, uniqueID)
	if err != nil {
		logger.Warn("get transaction failed",
			"event", "bank_payment_get_transaction_failed",
			"module", application.ModuleName,
			"layer", "application",
			"invoice_ref", invoiceRef,
			"unique_id", uniqueID,
			"error", err.Error(),
		)
		return entities.Transaction{}, err
	}
	return txn, nil
}
