package httptransport

type RequestOTPResponse struct {
	UniqueID    string `json:"unique_id"`
	Status      string `json:"status"`
	FailureKind string `json:"failure_kind,omitempty"`
	Failure     string `json:"failure,omitempty"`
}

type MakePaymentRequest struct {
	UniqueID string `json:"unique_id" validate:"required,max=140"`
	OTP      string `json:"otp" validate:"required,numeric,min=4,max=10"`
}

type MakePaymentResponse struct {
	UniqueID      string `json:"unique_id"`
	PaymentStatus string `json:"payment_status"`
	SettlementID  string `json:"settlement_id,omitempty"`
}

// TransactionDTO is the audit view of one attempt. Session keys, IVs and
// request envelopes are never exposed.
type TransactionDTO struct {
	InvoiceRef      string `json:"invoice_ref"`
	UniqueID        string `json:"unique_id"`
	Sequence        int    `json:"sequence"`
	OTPStatus       string `json:"otp_status"`
	OTPResponse     string `json:"otp_response,omitempty"`
	PaymentStatus   string `json:"payment_status,omitempty"`
	PaymentResponse string `json:"payment_response,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type GetTransactionResponse struct {
	Item TransactionDTO `json:"item"`
}

type ListTransactionsResponse struct {
	Items []TransactionDTO `json:"items"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
