package entities

import (
	"fmt"
	"strings"
	"time"

	domainerrors "bankpay/contexts/finance-core/bank-payment-service/domain/errors"
)

type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
	// StatusPending marks a payment that has been claimed and sent, or is about
	// to be, but whose outcome is not recorded yet.
	StatusPending Status = "Pending"
)

// Transaction is the audit record correlating the OTP step and the payment
// step of one supplier payment. It is created by the OTP step and only ever
// mutated in place afterwards.
type Transaction struct {
	InvoiceRef      string
	UniqueID        string
	Sequence        int
	SessionKey      string
	IV              string
	OTPRequest      string
	OTPResponse     string
	OTPStatus       Status
	PaymentRequest  string
	PaymentResponse string
	PaymentStatus   Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FormatUniqueID builds the correlation id shared by both steps.
func FormatUniqueID(invoiceRef string, sequence int) string {
	return fmt.Sprintf("%s-%d", invoiceRef, sequence)
}

func NewTransaction(
	invoiceRef string,
	sequence int,
	sessionKey string,
	iv string,
	otpRequest string,
	otpResponse string,
	status Status,
	now time.Time,
) (Transaction, error) {
	invoiceRef = strings.TrimSpace(invoiceRef)
	if invoiceRef == "" || sequence <= 0 {
		return Transaction{}, domainerrors.ErrInvalidInput
	}
	if status != StatusSuccess && status != StatusFailed {
		return Transaction{}, domainerrors.ErrInvalidInput
	}
	return Transaction{
		InvoiceRef:  invoiceRef,
		UniqueID:    FormatUniqueID(invoiceRef, sequence),
		Sequence:    sequence,
		SessionKey:  sessionKey,
		IV:          iv,
		OTPRequest:  otpRequest,
		OTPResponse: otpResponse,
		OTPStatus:   status,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

func (t Transaction) PaymentAttempted() bool {
	return t.PaymentStatus != ""
}

// EnsurePayable allows exactly one payment attempt per successful OTP record.
// Any further attempt needs a new OTP request and therefore a new unique id.
func (t Transaction) EnsurePayable() error {
	if t.OTPStatus != StatusSuccess {
		return domainerrors.ErrInvalidTransactionState
	}
	if t.PaymentAttempted() {
		return domainerrors.ErrInvalidTransactionState
	}
	return nil
}

// ClaimPayment reserves the record for the single payment attempt it allows.
// The claim is taken before the bank is called.
func (t Transaction) ClaimPayment(now time.Time) (Transaction, error) {
	if err := t.EnsurePayable(); err != nil {
		return Transaction{}, err
	}
	t.PaymentStatus = StatusPending
	t.UpdatedAt = now.UTC()
	return t, nil
}

// EnsureClaimed is the precondition for recording a payment outcome.
func (t Transaction) EnsureClaimed() error {
	if t.PaymentStatus != StatusPending {
		return domainerrors.ErrInvalidTransactionState
	}
	return nil
}
