package commands

import (
	"encoding/json"
	"errors"
	"io"

	domainerrors "bankpay/contexts/finance-core/bank-payment-service/domain/errors"
	"bankpay/contexts/finance-core/bank-payment-service/domain/services"
	"bankpay/contexts/finance-core/bank-payment-service/ports"
)

const (
	envelopeService      = "LOP"
	oaepHashingAlgorithm = "NONE"
)

type sealedRequest struct {
	Request  ports.EnvelopeRequest
	Material services.SessionMaterial
	// Body is the JSON request envelope as sent, kept for the audit record.
	Body string
}

// sealRequest draws fresh session material, encrypts payload under it and
// wraps the key for the bank.
func sealRequest(payload any, requestID string, keys services.Keyring, random io.Reader) (sealedRequest, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return sealedRequest{}, domainerrors.Crypto("marshal payload")
	}
	material, err := services.NewSessionMaterial(random)
	if err != nil {
		return sealedRequest{}, err
	}
	encryptedData, err := services.EncryptPayload(plaintext, material.Key, material.IV)
	if err != nil {
		return sealedRequest{}, err
	}
	encryptedKey, err := services.WrapSessionKey(material.Key, keys.BankPublicKey)
	if err != nil {
		return sealedRequest{}, err
	}

	request := ports.EnvelopeRequest{
		RequestID:            requestID,
		Service:              envelopeService,
		EncryptedKey:         encryptedKey,
		OAEPHashingAlgorithm: oaepHashingAlgorithm,
		IV:                   material.EncodedIV(),
		EncryptedData:        encryptedData,
		ClientInfo:           "",
		OptionalParam:        "",
	}
	body, err := json.Marshal(request)
	if err != nil {
		return sealedRequest{}, domainerrors.Crypto("marshal envelope")
	}
	return sealedRequest{Request: request, Material: material, Body: string(body)}, nil
}

func openResponse(response ports.EnvelopeResponse, keys services.Keyring) (string, error) {
	return services.OpenEnvelope(response.EncryptedData, response.EncryptedKey, keys.CallerPrivateKey)
}

// failureRecord is what gets persisted as the response of a failed step: the
// bank's raw body when one came back, otherwise the error text.
func failureRecord(err error, response ports.EnvelopeResponse) string {
	if len(response.Raw) > 0 {
		return string(response.Raw)
	}
	var typed *domainerrors.Error
	if errors.As(err, &typed) && typed.Body != "" {
		return typed.Body
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func httpStatusOf(err error, response ports.EnvelopeResponse) int {
	if response.StatusCode != 0 {
		return response.StatusCode
	}
	var typed *domainerrors.Error
	if errors.As(err, &typed) {
		return typed.StatusCode
	}
	return 0
}
