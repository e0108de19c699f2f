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

type ListTransactionsQuery struct {
	InvoiceRef string
}

type ListTransactionsResult struct {
	Items []entities.Transaction
}

// ListTransactionsUseCase returns every attempt for an invoice in sequence
// order, for reconciliation against the bank statement.
type ListTransactionsUseCase struct {
	Transactions ports.TransactionLog
	Logger       *slog.Logger
}

func (u ListTransactionsUseCase) Execute(ctx context.Context, query ListTransactionsQuery) (ListTransactionsResult, error) {
	logger := application.ResolveLogger(u.Logger)
	invoiceRef := strings.TrimSpace(query.InvoiceRef)
	if invoiceRef == "" {
		return ListTransactionsResult{}, domainerrors.InvalidInput("list transactions", domainerrors.ErrInvalidInput)
	}

	items, err := u.Transactions.ListTransactions(ctx, invoiceRef)
	if err != nil {
		logger.Error("list transactions failed",
			"event", "bank_payment_list_transactions_failed",
			"module", application.ModuleName,
			"layer", "application",
			"invoice_ref", invoiceRef,
			"error", err.Error(),
		)
		return ListTransactionsResult{}, err
	}

	logger.Info("list transactions completed",
		"event", "bank_payment_list_transactions_completed",
		"module", application.ModuleName,
		"layer", "application",
		"invoice_ref", invoiceRef,
		"items_count", len(items),
	)
	return ListTransactionsResult{Items: items}, nil
}
