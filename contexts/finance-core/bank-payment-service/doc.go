// Package bankpaymentservice pays supplier purchase invoices through the
// bank's hybrid-encrypted API in two steps: an OTP request that opens a
// transaction record, then a payment that consumes it and settles the
// invoice in the host ledger.
package bankpaymentservice
