package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch on outcome without parsing messages.
type Kind string

const (
	KindConfig       Kind = "config"
	KindCrypto       Kind = "crypto"
	KindTransport    Kind = "transport"
	KindNotFound     Kind = "not_found"
	KindInvalidInput Kind = "invalid_input"
	KindInvalidState Kind = "invalid_state"
	KindLedger       Kind = "ledger"
)

var (
	ErrInvalidInput             = errors.New("bank payment input is invalid")
	ErrInvalidInvoice           = errors.New("invoice cannot be paid through the bank")
	ErrMissingSetting           = errors.New("bank setting is required")
	ErrKeyMaterial              = errors.New("rsa key material is invalid")
	ErrEnvelope                 = errors.New("envelope cryptography failed")
	ErrBankRequestFailed        = errors.New("bank api request failed")
	ErrTransactionNotFound      = errors.New("bank payment transaction not found")
	ErrInvoiceNotFound          = errors.New("invoice not found")
	ErrDuplicateTransaction     = errors.New("bank payment transaction already exists")
	ErrRepositoryInvariantBroke = errors.New("repository invariant violated")
	ErrInvalidTransactionState  = errors.New("transaction is not eligible for payment")
	ErrPaymentUnverified        = errors.New("payment may have succeeded but the bank response could not be verified; check the bank statement before retrying")
	ErrSettlementFailed         = errors.New("payment succeeded but the settlement record could not be created")
)

// Error carries the failure kind, the operation that failed and, for transport
// failures, the bank's status code and raw body.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Config(op string, err error) *Error {
	return &Error{Kind: KindConfig, Op: op, Err: err}
}

// Crypto never wraps the underlying cause; envelope failures stay opaque.
func Crypto(op string) *Error {
	return &Error{Kind: KindCrypto, Op: op, Err: ErrEnvelope}
}

func Transport(op string, statusCode int, body string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, StatusCode: statusCode, Body: body, Err: err}
}

func NotFound(op string, err error) *Error {
	return &Error{Kind: KindNotFound, Op: op, Err: err}
}

func InvalidInput(op string, err error) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Err: err}
}

func InvalidState(op string, err error) *Error {
	return &Error{Kind: KindInvalidState, Op: op, Err: err}
}

func Ledger(op string, err error) *Error {
	return &Error{Kind: KindLedger, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when none.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return ""
}
