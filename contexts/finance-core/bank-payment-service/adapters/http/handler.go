package httpadapter

import (
	"context"
	"log/slog"
	"time"

	application "bankpay/contexts/finance-core/bank-payment-service/application"
	"bankpay/contexts/finance-core/bank-payment-service/application/commands"
	"bankpay/contexts/finance-core/bank-payment-service/application/queries"
	"bankpay/contexts/finance-core/bank-payment-service/domain/entities"
	domainerrors "bankpay/contexts/finance-core/bank-payment-service/domain/errors"
	httptransport "bankpay/contexts/finance-core/bank-payment-service/transport/http"

	"github.com/go-playground/validator/v10"
)

type Handler struct {
	RequestOTP       commands.RequestOTPUseCase
	MakePayment      commands.MakePaymentUseCase
	GetTransaction   queries.GetTransactionUseCase
	ListTransactions queries.ListTransactionsUseCase
	Validate         *validator.Validate
	Logger           *slog.Logger
}

// RequestOTPHandler godoc
// @Summary Request a payment OTP
// @Description Starts a payment attempt for a purchase invoice and asks the bank to send an OTP. The returned unique_id correlates the later payment call.
// @Tags bank-payments
// @Produce json
// @Param invoice_ref path string true "Purchase invoice reference"
// @Success 200 {object} httptransport.RequestOTPResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 502 {object} httptransport.RequestOTPResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /api/bank-payments/v1/invoices/{invoice_ref}/otp [post]
func (h Handler) RequestOTPHandler(ctx context.Context, invoiceRef string) (httptransport.RequestOTPResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Info("request otp received",
		"event", "http_bank_payment_otp_received",
		"module", application.ModuleName,
		"layer", "transport",
		"invoice_ref", invoiceRef,
	)

	result, err := h.RequestOTP.Execute(ctx, commands.RequestOTPCommand{InvoiceRef: invoiceRef})
	if err != nil {
		logger.Error("request otp failed",
			"event", "http_bank_payment_otp_failed",
			"module", application.ModuleName,
			"layer", "transport",
			"invoice_ref", invoiceRef,
			"error", err.Error(),
		)
		return httptransport.RequestOTPResponse{}, err
	}

	resp := httptransport.RequestOTPResponse{
		UniqueID: result.UniqueID,
		Status:   string(result.Status),
	}
	if result.Failure != nil {
		resp.FailureKind = string(domainerrors.KindOf(result.Failure))
		resp.Failure = result.Failure.Error()
	}
	return resp, nil
}

// MakePaymentHandler godoc
// @Summary Execute a supplier payment
// @Description Pays the invoice's beneficiary using the OTP delivered for unique_id. A 502 with code payment_unverified means the bank may have executed the payment.
// @Tags bank-payments
// @Accept json
// @Produce json
// @Param invoice_ref path string true "Purchase invoice reference"
// @Param request body httptransport.MakePaymentRequest true "Payment request"
// @Success 200 {object} httptransport.MakePaymentResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Failure 502 {object} httptransport.ErrorResponse
// @Router /api/bank-payments/v1/invoices/{invoice_ref}/payments [post]
func (h Handler) MakePaymentHandler(
	ctx context.Context,
	invoiceRef string,
	req httptransport.MakePaymentRequest,
) (httptransport.MakePaymentResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	if err := h.validator().Struct(req); err != nil {
		return httptransport.MakePaymentResponse{}, domainerrors.InvalidInput("make payment", err)
	}
	logger.Info("make payment received",
		"event", "http_bank_payment_payment_received",
		"module", application.ModuleName,
		"layer", "transport",
		"invoice_ref", invoiceRef,
		"unique_id", req.UniqueID,
	)

	result, err := h.MakePayment.Execute(ctx, commands.MakePaymentCommand{
		InvoiceRef: invoiceRef,
		UniqueID:   req.UniqueID,
		OTP:        req.OTP,
	})
	if err != nil {
		logger.Error("make payment failed",
			"event", "http_bank_payment_payment_failed",
			"module", application.ModuleName,
			"layer", "transport",
			"invoice_ref", invoiceRef,
			"unique_id", req.UniqueID,
			"error", err.Error(),
		)
		return httptransport.MakePaymentResponse{}, err
	}
	return httptransport.MakePaymentResponse{
		UniqueID:      result.Transaction.UniqueID,
		PaymentStatus: string(result.Transaction.PaymentStatus),
		SettlementID:  result.SettlementID,
	}, nil
}

// GetTransactionHandler godoc
// @Summary Get one payment attempt
// @Tags bank-payments
// @Produce json
// @Param invoice_ref path string true "Purchase invoice reference"
// @Param unique_id path string true "Attempt unique id"
// @Success 200 {object} httptransport.GetTransactionResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /api/bank-payments/v1/invoices/{invoice_ref}/transactions/{unique_id} [get]
func (h Handler) GetTransactionHandler(ctx context.Context, invoiceRef string, uniqueID string) (httptransport.GetTransactionResponse, error) {
	txn, err := h.GetTransaction.Execute(ctx, queries.GetTransactionQuery{
		InvoiceRef: invoiceRef,
		UniqueID:   uniqueID,
	})
	if err != nil {
		return httptransport.GetTransactionResponse{}, err
	}
	return httptransport.GetTransactionResponse{Item: mapTransaction(txn)}, nil
}

// ListTransactionsHandler godoc
// @Summary List payment attempts for an invoice
// @Tags bank-payments
// @Produce json
// @Param invoice_ref path string true "Purchase invoice reference"
// @Success 200 {object} httptransport.ListTransactionsResponse
// @Router /api/bank-payments/v1/invoices/{invoice_ref}/transactions [get]
func (h Handler) ListTransactionsHandler(ctx context.Context, invoiceRef string) (httptransport.ListTransactionsResponse, error) {
	result, err := h.ListTransactions.Execute(ctx, queries.ListTransactionsQuery{InvoiceRef: invoiceRef})
	if err != nil {
		return httptransport.ListTransactionsResponse{}, err
	}
	items := make([]httptransport.TransactionDTO, 0, len(result.Items))
	for _, txn := range result.Items {
		items = append(items, mapTransaction(txn))
	}
	return httptransport.ListTransactionsResponse{Items: items}, nil
}

func (h Handler) validator() *validator.Validate {
	if h.Validate != nil {
		return h.Validate
	}
	return validator.New()
}

func mapTransaction(txn entities.Transaction) httptransport.TransactionDTO {
	return httptransport.TransactionDTO{
		InvoiceRef:      txn.InvoiceRef,
		UniqueID:        txn.UniqueID,
		Sequence:        txn.Sequence,
		OTPStatus:       string(txn.OTPStatus),
		OTPResponse:     txn.OTPResponse,
		PaymentStatus:   string(txn.PaymentStatus),
		PaymentResponse: txn.PaymentResponse,
		CreatedAt:       txn.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       txn.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
