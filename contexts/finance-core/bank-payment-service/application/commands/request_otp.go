package commands

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	application "bankpay/contexts/finance-core/bank-payment-service/application"
	"bankpay/contexts/finance-core/bank-payment-service/domain/entities"
	domainerrors "bankpay/contexts/finance-core/bank-payment-service/domain/errors"
	"bankpay/contexts/finance-core/bank-payment-service/domain/services"
	"bankpay/contexts/finance-core/bank-payment-service/ports"
)

type RequestOTPCommand struct {
	InvoiceRef string
}

// RequestOTPResult reports the bank outcome. A Failed status comes with the
// cause in Failure; it is not returned as an error because the record was
// still written and the caller gets a usable unique id for reconciliation.
type RequestOTPResult struct {
	UniqueID string
	Status   entities.Status
	Failure  error
}

type otpPayload struct {
	AggregatorID   string `json:"AGGRID"`
	AggregatorName string `json:"AGGRNAME"`
	CorporateID    string `json:"CORPID"`
	UserID         string `json:"USERID"`
	URN            string `json:"URN"`
	UniqueID       string `json:"UNIQUEID"`
}

type RequestOTPUseCase struct {
	Transactions ports.TransactionLog
	Gateway      ports.BankGateway
	Settings     ports.BankSettings
	Keys         services.Keyring
	Clock        ports.Clock
	IDGenerator  ports.IDGenerator
	Random       io.Reader
	Logger       *slog.Logger
}

// Execute runs the OTP step:
// 1) reserve the next per-invoice sequence
// 2) seal the credentials payload under a fresh session key
// 3) call the bank once and open the response
// 4) persist the record plus its audit event, Success or Failed.
func (u RequestOTPUseCase) Execute(ctx context.Context, cmd RequestOTPCommand) (RequestOTPResult, error) {
	logger := application.ResolveLogger(u.Logger)
	invoiceRef := strings.TrimSpace(cmd.InvoiceRef)
	if invoiceRef == "" {
		return RequestOTPResult{}, domainerrors.InvalidInput("request otp", domainerrors.ErrInvalidInput)
	}

	sequence, err := u.Transactions.ReserveSequence(ctx, invoiceRef)
	if err != nil {
		logger.Error("request otp sequence reservation failed",
			"event", "bank_payment_otp_sequence_failed",
			"module", application.ModuleName,
			"layer", "application",
			"invoice_ref", invoiceRef,
			"error", err.Error(),
		)
		return RequestOTPResult{}, err
	}
	uniqueID := entities.FormatUniqueID(invoiceRef, sequence)

	logger.Info("request otp started",
		"event", "bank_payment_otp_started",
		"module", application.ModuleName,
		"layer", "application",
		"invoice_ref", invoiceRef,
		"unique_id", uniqueID,
	)

	status := entities.StatusSuccess
	var (
		sealed    sealedRequest
		response  ports.EnvelopeResponse
		plaintext string
		failure   error
	)
	sealed, failure = sealRequest(otpPayload{
		AggregatorID:   u.Settings.AggregatorID,
		AggregatorName: u.Settings.AggregatorName,
		CorporateID:    u.Settings.CorporateID,
		UserID:         u.Settings.UserID,
		URN:            u.Settings.URN,
		UniqueID:       uniqueID,
	}, "", u.Keys, u.Random)
	if failure == nil {
		response, failure = u.Gateway.Send(ctx, u.Settings.OTPURL, u.Settings.APIKey, sealed.Request)
	}
	if failure == nil {
		plaintext, failure = openResponse(response, u.Keys)
	}

	otpResponse := plaintext
	eventType := EventOTPSucceeded
	if failure != nil {
		status = entities.StatusFailed
		otpResponse = failureRecord(failure, response)
		eventType = EventOTPFailed
		logger.Warn("request otp failed at bank",
			"event", "bank_payment_otp_bank_failed",
			"module", application.ModuleName,
			"layer", "application",
			"invoice_ref", invoiceRef,
			"unique_id", uniqueID,
			"failure_kind", string(domainerrors.KindOf(failure)),
			"http_status", httpStatusOf(failure, response),
			"error", failure.Error(),
		)
	}

	now := u.now()
	txn, err := entities.NewTransaction(
		invoiceRef,
		sequence,
		sealed.Material.EncodedKey(),
		sealed.Material.EncodedIV(),
		sealed.Body,
		otpResponse,
		status,
		now,
	)
	if err != nil {
		return RequestOTPResult{}, domainerrors.InvalidInput("request otp", err)
	}
	audit, err := newAuditEvent(ctx, u.IDGenerator, now, eventType, withFailure(AuditData{
		InvoiceRef: invoiceRef,
		UniqueID:   uniqueID,
		Step:       "otp",
		Status:     string(status),
		HTTPStatus: httpStatusOf(failure, response),
	}, failure))
	if err != nil {
		return RequestOTPResult{}, err
	}
	if err := u.Transactions.CreateTransaction(ctx, txn, audit); err != nil {
		logger.Error("request otp record write failed",
			"event", "bank_payment_otp_record_failed",
			"module", application.ModuleName,
			"layer", "application",
			"invoice_ref", invoiceRef,
			"unique_id", uniqueID,
			"error", err.Error(),
		)
		return RequestOTPResult{}, err
	}

	logger.Info("request otp completed",
		"event", "bank_payment_otp_completed",
		"module", application.ModuleName,
		"layer", "application",
		"invoice_ref", invoiceRef,
		"unique_id", uniqueID,
		"status", string(status),
	)
	return RequestOTPResult{UniqueID: uniqueID, Status: status, Failure: failure}, nil
}

func (u RequestOTPUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}
