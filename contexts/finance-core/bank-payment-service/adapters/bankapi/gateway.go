package bankapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	application "bankpay/contexts/finance-core/bank-payment-service/application"
	domainerrors "bankpay/contexts/finance-core/bank-payment-service/domain/errors"
	"bankpay/contexts/finance-core/bank-payment-service/ports"
)

const (
	DefaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

// Client posts envelopes to the bank. One attempt per call, no retries.
type Client struct {
	HTTP    *http.Client
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		HTTP:    &http.Client{Timeout: timeout},
		Timeout: timeout,
		Logger:  logger,
	}
}

type wireResponse struct {
	EncryptedData string `json:"encryptedData"`
	EncryptedKey  string `json:"encryptedKey"`
}

func (c *Client) Send(ctx context.Context, url string, apiKey string, request ports.EnvelopeRequest) (ports.EnvelopeResponse, error) {
	const op = "bank send"
	logger := application.ResolveLogger(c.Logger)

	body, err := json.Marshal(request)
	if err != nil {
		return ports.EnvelopeResponse{}, domainerrors.Transport(op, 0, "", fmt.Errorf("%w: encode request: %v", domainerrors.ErrBankRequestFailed, err))
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return ports.EnvelopeResponse{}, domainerrors.Transport(op, 0, "", fmt.Errorf("%w: build request: %v", domainerrors.ErrBankRequestFailed, err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "*/*")
	httpReq.Header.Set("APIKEY", apiKey)

	started := time.Now()
	resp, err := c.client().Do(httpReq)
	if err != nil {
		logger.Error("bank request failed",
			"event", "bank_api_request_failed",
			"module", application.ModuleName,
			"layer", "adapter",
			"request_id", request.RequestID,
			"elapsed_ms", time.Since(started).Milliseconds(),
			"error", err.Error(),
		)
		return ports.EnvelopeResponse{}, domainerrors.Transport(op, 0, "", fmt.Errorf("%w: %v", domainerrors.ErrBankRequestFailed, err))
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if readErr != nil {
		logger.Warn("bank response body incomplete",
			"event", "bank_api_response_incomplete",
			"module", application.ModuleName,
			"layer", "adapter",
			"request_id", request.RequestID,
			"http_status", resp.StatusCode,
			"bytes_read", len(raw),
			"error", readErr.Error(),
		)
		if resp.StatusCode != http.StatusOK {
			return ports.EnvelopeResponse{}, domainerrors.Transport(op, resp.StatusCode, string(raw), fmt.Errorf("%w: read body: %v", domainerrors.ErrBankRequestFailed, readErr))
		}
		// The bank accepted the request. Whatever arrived is handed on so the
		// caller treats it as an unverifiable answer, not as a refusal.
		return ports.EnvelopeResponse{Raw: raw, StatusCode: resp.StatusCode}, nil
	}

	logger.Info("bank request completed",
		"event", "bank_api_request_completed",
		"module", application.ModuleName,
		"layer", "adapter",
		"request_id", request.RequestID,
		"http_status", resp.StatusCode,
		"elapsed_ms", time.Since(started).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		return ports.EnvelopeResponse{}, domainerrors.Transport(
			op,
			resp.StatusCode,
			string(raw),
			fmt.Errorf("%w: status %d", domainerrors.ErrBankRequestFailed, resp.StatusCode),
		)
	}

	out := ports.EnvelopeResponse{Raw: raw, StatusCode: resp.StatusCode}
	var decoded wireResponse
	// A 200 that is not an envelope is left for decryption to reject.
	if err := json.Unmarshal(raw, &decoded); err == nil {
		out.EncryptedData = decoded.EncryptedData
		out.EncryptedKey = decoded.EncryptedKey
	}
	return out, nil
}

func (c *Client) client() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}
