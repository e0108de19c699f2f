package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	application "bankpay/contexts/finance-core/bank-payment-service/application"
	"bankpay/contexts/finance-core/bank-payment-service/domain/entities"
	domainerrors "bankpay/contexts/finance-core/bank-payment-service/domain/errors"
	"bankpay/contexts/finance-core/bank-payment-service/domain/services"
	"bankpay/contexts/finance-core/bank-payment-service/ports"

	"github.com/shopspring/decimal"
)

const (
	paymentCurrency            = "INR"
	paymentTxnType             = "OWN"
	customerInduced            = "N"
	defaultSettlementRefPrefix = "ICICI-"
	defaultPaymentMode         = "Wire Transfer"
)

type MakePaymentCommand struct {
	InvoiceRef string
	UniqueID   string
	OTP        string
}

type MakePaymentResult struct {
	Transaction  entities.Transaction
	SettlementID string
}

type paymentPayload struct {
	AggregatorID    string      `json:"AGGRID"`
	AggregatorName  string      `json:"AGGRNAME"`
	CorporateID     string      `json:"CORPID"`
	UserID          string      `json:"USERID"`
	URN             string      `json:"URN"`
	UniqueID        string      `json:"UNIQUEID"`
	DebitAccount    string      `json:"DEBITACC"`
	CreditAccount   string      `json:"CREDITACC"`
	IFSC            string      `json:"IFSC"`
	Amount          json.Number `json:"AMOUNT"`
	Currency        string      `json:"CURRENCY"`
	TxnType         string      `json:"TXNTYPE"`
	PayeeName       string      `json:"PAYEENAME"`
	Remarks         string      `json:"REMARKS"`
	OTP             string      `json:"OTP"`
	CustomerInduced string      `json:"CUSTOMERINDUCED"`
}

type MakePaymentUseCase struct {
	Transactions ports.TransactionLog
	Ledger       ports.Ledger
	Gateway      ports.BankGateway
	Settings     ports.BankSettings
	Keys         services.Keyring
	Clock        ports.Clock
	IDGenerator  ports.IDGenerator
	Random       io.Reader
	Logger       *slog.Logger
}

// Execute runs the payment step against an existing OTP record. It never
// creates a record. Settlement in the host ledger only happens after the
// bank response decrypted cleanly.
func (u MakePaymentUseCase) Execute(ctx context.Context, cmd MakePaymentCommand) (MakePaymentResult, error) {
	const op = "make payment"
	logger := application.ResolveLogger(u.Logger)
	invoiceRef := strings.TrimSpace(cmd.InvoiceRef)
	uniqueID := strings.TrimSpace(cmd.UniqueID)
	otp := strings.TrimSpace(cmd.OTP)
	if invoiceRef == "" || uniqueID == "" || otp == "" {
		return MakePaymentResult{}, domainerrors.InvalidInput(op, domainerrors.ErrInvalidInput)
	}

	txn, err := u.Transactions.GetTransaction(ctx, invoiceRef, uniqueID)
	if err != nil {
		logger.Warn("make payment record lookup failed",
			"event", "bank_payment_payment_lookup_failed",
			"module", application.ModuleName,
			"layer", "application",
			"invoice_ref", invoiceRef,
			"unique_id", uniqueID,
			"error", err.Error(),
		)
		return MakePaymentResult{}, err
	}
	if err := txn.EnsurePayable(); err != nil {
		return MakePaymentResult{}, domainerrors.InvalidState(op, err)
	}

	invoice, err := u.Ledger.GetInvoice(ctx, invoiceRef)
	if err != nil {
		logger.Error("make payment invoice lookup failed",
			"event", "bank_payment_payment_invoice_failed",
			"module", application.ModuleName,
			"layer", "application",
			"invoice_ref", invoiceRef,
			"error", err.Error(),
		)
		return MakePaymentResult{}, err
	}
	amount := invoice.RoundedTotal.Round(2)
	if strings.TrimSpace(invoice.BeneficiaryAccount) == "" || !amount.IsPositive() {
		return MakePaymentResult{}, domainerrors.InvalidInput(op, domainerrors.ErrInvalidInvoice)
	}
	// Only unpaid invoices are paid, always for the full rounded total.
	if invoice.OutstandingAmount.Round(2).LessThan(amount) {
		logger.Warn("make payment invoice is not fully outstanding",
			"event", "bank_payment_payment_invoice_paid",
			"module", application.ModuleName,
			"layer", "application",
			"invoice_ref", invoiceRef,
			"outstanding", invoice.OutstandingAmount.StringFixed(2),
			"amount", amount.StringFixed(2),
		)
		return MakePaymentResult{}, domainerrors.InvalidInput(op, fmt.Errorf("%w: outstanding %s below %s", domainerrors.ErrInvalidInvoice, invoice.OutstandingAmount.StringFixed(2), amount.StringFixed(2)))
	}
	ifsc := strings.TrimSpace(invoice.BeneficiaryIFSC)
	if ifsc == "" {
		ifsc = u.Settings.IFSC
	}

	sealed, err := sealRequest(paymentPayload{
		AggregatorID:    u.Settings.AggregatorID,
		AggregatorName:  u.Settings.AggregatorName,
		CorporateID:     u.Settings.CorporateID,
		UserID:          u.Settings.UserID,
		URN:             u.Settings.URN,
		UniqueID:        uniqueID,
		DebitAccount:    u.Settings.DebitAccountNo,
		CreditAccount:   invoice.BeneficiaryAccount,
		IFSC:            ifsc,
		Amount:          json.Number(amount.StringFixed(2)),
		Currency:        paymentCurrency,
		TxnType:         paymentTxnType,
		PayeeName:       invoice.SupplierName,
		Remarks:         "Payment for PI: " + invoiceRef,
		OTP:             otp,
		CustomerInduced: customerInduced,
	}, uniqueID, u.Keys, u.Random)
	if err != nil {
		// Nothing left the process; the record stays payable.
		logger.Error("make payment seal failed",
			"event", "bank_payment_payment_seal_failed",
			"module", application.ModuleName,
			"layer", "application",
			"invoice_ref", invoiceRef,
			"unique_id", uniqueID,
			"error", err.Error(),
		)
		return MakePaymentResult{}, err
	}

	// The claim is the single-attempt guard: a concurrent caller for the same
	// unique id loses here and never reaches the bank.
	claimed, err := u.Transactions.ClaimPayment(ctx, invoiceRef, uniqueID, u.now())
	if err != nil {
		logger.Warn("make payment claim rejected",
			"event", "bank_payment_payment_claim_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"invoice_ref", invoiceRef,
			"unique_id", uniqueID,
			"error", err.Error(),
		)
		return MakePaymentResult{}, err
	}
	txn = claimed

	audit := AuditData{
		InvoiceRef: invoiceRef,
		UniqueID:   uniqueID,
		Step:       "payment",
		Amount:     amount.StringFixed(2),
	}

	response, sendErr := u.Gateway.Send(ctx, u.Settings.PaymentURL, u.Settings.APIKey, sealed.Request)
	if sendErr != nil {
		audit.Status = string(entities.StatusFailed)
		audit.HTTPStatus = httpStatusOf(sendErr, response)
		logger.Error("make payment bank call failed",
			"event", "bank_payment_payment_bank_failed",
			"module", application.ModuleName,
			"layer", "application",
			"invoice_ref", invoiceRef,
			"unique_id", uniqueID,
			"http_status", audit.HTTPStatus,
			"error", sendErr.Error(),
		)
		if _, err := u.recordPayment(ctx, txn, sealed.Body, failureRecord(sendErr, response), entities.StatusFailed, EventPaymentFailed, withFailure(audit, sendErr)); err != nil {
			return MakePaymentResult{}, fmt.Errorf("%w; recording failure: %w", sendErr, err)
		}
		return MakePaymentResult{}, sendErr
	}

	plaintext, openErr := openResponse(response, u.Keys)
	if openErr != nil {
		unverified := &domainerrors.Error{
			Kind: domainerrors.KindCrypto,
			Op:   op,
			Err:  domainerrors.ErrPaymentUnverified,
		}
		audit.Status = string(entities.StatusFailed)
		audit.HTTPStatus = response.StatusCode
		logger.Error("make payment response could not be verified",
			"event", "bank_payment_payment_unverified",
			"module", application.ModuleName,
			"layer", "application",
			"invoice_ref", invoiceRef,
			"unique_id", uniqueID,
			"http_status", response.StatusCode,
			"error", openErr.Error(),
		)
		stored := string(response.Raw)
		if stored == "" {
			stored = openErr.Error()
		}
		if _, err := u.recordPayment(ctx, txn, sealed.Body, stored, entities.StatusFailed, EventPaymentUnverified, withFailure(audit, unverified)); err != nil {
			return MakePaymentResult{}, fmt.Errorf("%w; recording failure: %w", unverified, err)
		}
		return MakePaymentResult{}, unverified
	}

	audit.Status = string(entities.StatusSuccess)
	audit.HTTPStatus = response.StatusCode
	updated, err := u.recordPayment(ctx, txn, sealed.Body, plaintext, entities.StatusSuccess, EventPaymentSucceeded, audit)
	if err != nil {
		logger.Error("make payment success could not be recorded",
			"event", "bank_payment_payment_record_failed",
			"module", application.ModuleName,
			"layer", "application",
			"invoice_ref", invoiceRef,
			"unique_id", uniqueID,
			"error", err.Error(),
		)
		return MakePaymentResult{}, fmt.Errorf("bank accepted payment %s but it was not recorded: %w", uniqueID, err)
	}

	settlementID, err := u.settle(ctx, invoice, amount, uniqueID)
	if err != nil {
		settlementErr := domainerrors.Ledger(op, fmt.Errorf("%w: %w", domainerrors.ErrSettlementFailed, err))
		logger.Error("make payment settlement failed",
			"event", "bank_payment_settlement_failed",
			"module", application.ModuleName,
			"layer", "application",
			"invoice_ref", invoiceRef,
			"unique_id", uniqueID,
			"error", err.Error(),
		)
		u.appendSettlementAudit(ctx, logger, EventSettlementFailed, withFailure(AuditData{
			InvoiceRef: invoiceRef,
			UniqueID:   uniqueID,
			Step:       "settlement",
			Status:     string(entities.StatusFailed),
			Amount:     amount.StringFixed(2),
		}, settlementErr))
		return MakePaymentResult{Transaction: updated}, settlementErr
	}
	u.appendSettlementAudit(ctx, logger, EventSettlementCreated, AuditData{
		InvoiceRef:   invoiceRef,
		UniqueID:     uniqueID,
		Step:         "settlement",
		Status:       string(entities.StatusSuccess),
		Amount:       amount.StringFixed(2),
		SettlementID: settlementID,
	})

	logger.Info("make payment completed",
		"event", "bank_payment_payment_completed",
		"module", application.ModuleName,
		"layer", "application",
		"invoice_ref", invoiceRef,
		"unique_id", uniqueID,
		"settlement_id", settlementID,
	)
	return MakePaymentResult{Transaction: updated, SettlementID: settlementID}, nil
}

func (u MakePaymentUseCase) recordPayment(
	ctx context.Context,
	txn entities.Transaction,
	request string,
	response string,
	status entities.Status,
	eventType string,
	data AuditData,
) (entities.Transaction, error) {
	now := u.now()
	event, err := newAuditEvent(ctx, u.IDGenerator, now, eventType, data)
	if err != nil {
		return entities.Transaction{}, err
	}
	return u.Transactions.UpdatePayment(ctx, txn.InvoiceRef, txn.UniqueID, ports.PaymentUpdate{
		Request:   request,
		Response:  response,
		Status:    status,
		UpdatedAt: now,
	}, event)
}

// appendSettlementAudit records settlement outcomes. The payment itself is
// already persisted, so a failed audit write is logged and not returned.
func (u MakePaymentUseCase) appendSettlementAudit(ctx context.Context, logger *slog.Logger, eventType string, data AuditData) {
	event, err := newAuditEvent(ctx, u.IDGenerator, u.now(), eventType, data)
	if err == nil {
		err = u.Transactions.AppendAudit(ctx, event)
	}
	if err != nil {
		logger.Error("settlement audit write failed",
			"event", "bank_payment_settlement_audit_failed",
			"module", application.ModuleName,
			"layer", "application",
			"invoice_ref", data.InvoiceRef,
			"unique_id", data.UniqueID,
			"event_type", eventType,
			"error", err.Error(),
		)
	}
}

func (u MakePaymentUseCase) settle(ctx context.Context, invoice ports.Invoice, amount decimal.Decimal, uniqueID string) (string, error) {
	settlementID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return "", err
	}
	prefix := u.Settings.SettlementReferencePrefix
	if prefix == "" {
		prefix = defaultSettlementRefPrefix
	}
	mode := u.Settings.PaymentMode
	if mode == "" {
		mode = defaultPaymentMode
	}
	now := u.now()
	return u.Ledger.CreateSettlement(ctx, ports.Settlement{
		SettlementID:  settlementID,
		InvoiceRef:    invoice.InvoiceRef,
		SupplierID:    invoice.SupplierID,
		Company:       invoice.Company,
		Amount:        amount,
		PaidFrom:      u.Settings.DebitLedgerAccount,
		PaidTo:        invoice.CreditTo,
		PaymentMode:   mode,
		ReferenceNo:   prefix + invoice.InvoiceRef,
		ReferenceDate: now,
		BankUniqueID:  uniqueID,
		CreatedAt:     now,
	})
}

func (u MakePaymentUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}
