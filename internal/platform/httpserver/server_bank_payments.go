package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	bankentities "bankpay/contexts/finance-core/bank-payment-service/domain/entities"
	bankerrors "bankpay/contexts/finance-core/bank-payment-service/domain/errors"
	bankhttp "bankpay/contexts/finance-core/bank-payment-service/transport/http"
)

const maxBankPaymentBodyBytes = 64 << 10

func (s *Server) registerBankPaymentRoutes() {
	s.mux.HandleFunc("POST /api/bank-payments/v1/invoices/{invoice_ref}/otp", s.handleBankRequestOTP)
	s.mux.HandleFunc("POST /api/bank-payments/v1/invoices/{invoice_ref}/payments", s.handleBankMakePayment)
	s.mux.HandleFunc("GET /api/bank-payments/v1/invoices/{invoice_ref}/transactions", s.handleBankListTransactions)
	s.mux.HandleFunc("GET /api/bank-payments/v1/invoices/{invoice_ref}/transactions/{unique_id}", s.handleBankGetTransaction)
}

func (s *Server) handleBankRequestOTP(w http.ResponseWriter, r *http.Request) {
	resp, err := s.bankPayments.Handler.RequestOTPHandler(r.Context(), r.PathValue("invoice_ref"))
	if err != nil {
		writeBankPaymentDomainError(w, err)
		return
	}
	status := http.StatusOK
	if resp.Status != string(bankentities.StatusSuccess) {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleBankMakePayment(w http.ResponseWriter, r *http.Request) {
	var req bankhttp.MakePaymentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBankPaymentBodyBytes)).Decode(&req); err != nil {
		writeBankPaymentError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.bankPayments.Handler.MakePaymentHandler(r.Context(), r.PathValue("invoice_ref"), req)
	if err != nil {
		writeBankPaymentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBankListTransactions(w http.ResponseWriter, r *http.Request) {
	resp, err := s.bankPayments.Handler.ListTransactionsHandler(r.Context(), r.PathValue("invoice_ref"))
	if err != nil {
		writeBankPaymentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBankGetTransaction(w http.ResponseWriter, r *http.Request) {
	resp, err := s.bankPayments.Handler.GetTransactionHandler(
		r.Context(),
		r.PathValue("invoice_ref"),
		r.PathValue("unique_id"),
	)
	if err != nil {
		writeBankPaymentDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeBankPaymentDomainError(w http.ResponseWriter, err error) {
	status, code, message := resolveBankPaymentError(err)
	writeBankPaymentError(w, status, code, message)
}

// resolveBankPaymentError checks the two money-at-risk outcomes first so they
// keep their own codes whatever kind they were raised with.
func resolveBankPaymentError(err error) (int, string, string) {
	switch {
	case errors.Is(err, bankerrors.ErrPaymentUnverified):
		return http.StatusBadGateway, "payment_unverified", bankerrors.ErrPaymentUnverified.Error()
	case errors.Is(err, bankerrors.ErrSettlementFailed):
		return http.StatusInternalServerError, "settlement_failed", bankerrors.ErrSettlementFailed.Error()
	case errors.Is(err, bankerrors.ErrTransactionNotFound):
		return http.StatusNotFound, "transaction_not_found", err.Error()
	case errors.Is(err, bankerrors.ErrInvoiceNotFound):
		return http.StatusNotFound, "invoice_not_found", err.Error()
	case errors.Is(err, bankerrors.ErrInvalidInvoice):
		return http.StatusBadRequest, "invalid_invoice", err.Error()
	case errors.Is(err, bankerrors.ErrInvalidTransactionState),
		errors.Is(err, bankerrors.ErrDuplicateTransaction):
		return http.StatusConflict, "invalid_state", err.Error()
	}

	switch bankerrors.KindOf(err) {
	case bankerrors.KindInvalidInput:
		return http.StatusBadRequest, "invalid_request", err.Error()
	case bankerrors.KindNotFound:
		return http.StatusNotFound, "not_found", err.Error()
	case bankerrors.KindInvalidState:
		return http.StatusConflict, "invalid_state", err.Error()
	case bankerrors.KindTransport:
		return http.StatusBadGateway, "bank_unavailable", err.Error()
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeBankPaymentError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, bankhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
