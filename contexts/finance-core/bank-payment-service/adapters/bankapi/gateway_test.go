package bankapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bankpay/contexts/finance-core/bank-payment-service/adapters/banksim"
	domainerrors "bankpay/contexts/finance-core/bank-payment-service/domain/errors"
	"bankpay/contexts/finance-core/bank-payment-service/ports"
)

func TestSendPostsEnvelopeWithHeaders(t *testing.T) {
	var got ports.EnvelopeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" || r.Header.Get("Accept") != "*/*" {
			t.Errorf("unexpected content headers %v", r.Header)
		}
		if r.Header.Get("APIKEY") != "secret-key" {
			t.Errorf("expected APIKEY header, got %q", r.Header.Get("APIKEY"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"requestId":"","encryptedKey":"a2V5","encryptedData":"ZGF0YQ==","extra":1}`))
	}))
	defer server.Close()

	client := NewClient(time.Second, nil)
	resp, err := client.Send(context.Background(), server.URL, "secret-key", ports.EnvelopeRequest{
		RequestID: "PI-1-1",
		Service:   "LOP",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.RequestID != "PI-1-1" || got.Service != "LOP" {
		t.Fatalf("bank received unexpected envelope %+v", got)
	}
	if resp.EncryptedKey != "a2V5" || resp.EncryptedData != "ZGF0YQ==" || resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(resp.Raw) == 0 {
		t.Fatalf("raw body must be kept")
	}
}

func TestSendNon200IsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errorCode":"INVALID_APIKEY"}`))
	}))
	defer server.Close()

	_, err := NewClient(time.Second, nil).Send(context.Background(), server.URL, "bad", ports.EnvelopeRequest{})
	var typed *domainerrors.Error
	if !errors.As(err, &typed) {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Kind != domainerrors.KindTransport || typed.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected error %+v", typed)
	}
	if typed.Body != `{"errorCode":"INVALID_APIKEY"}` {
		t.Fatalf("expected raw body on error, got %q", typed.Body)
	}
	if !errors.Is(err, domainerrors.ErrBankRequestFailed) {
		t.Fatalf("expected bank request failed sentinel")
	}
}

func TestSendNonJSON200KeepsRawBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer server.Close()

	resp, err := NewClient(time.Second, nil).Send(context.Background(), server.URL, "k", ports.EnvelopeRequest{})
	if err != nil {
		t.Fatalf("a 200 must not fail at transport level: %v", err)
	}
	if resp.EncryptedData != "" || resp.EncryptedKey != "" {
		t.Fatalf("expected empty envelope fields, got %+v", resp)
	}
	if string(resp.Raw) != "<html>maintenance</html>" {
		t.Fatalf("unexpected raw body %q", resp.Raw)
	}
}

func truncatingServer(t *testing.T, status int, body string, sent int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if err := banksim.WriteTruncated(w, status, []byte(body), sent); err != nil {
			t.Errorf("write truncated: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSendTruncated200IsHandedOnWithPartialBody(t *testing.T) {
	body := `{"encryptedKey":"a2V5","encryptedData":"ZGF0YQ=="}`
	server := truncatingServer(t, http.StatusOK, body, 20)

	resp, err := NewClient(time.Second, nil).Send(context.Background(), server.URL, "k", ports.EnvelopeRequest{})
	if err != nil {
		t.Fatalf("an accepted request must not become a transport failure: %v", err)
	}
	if resp.StatusCode != http.StatusOK || string(resp.Raw) != body[:20] {
		t.Fatalf("expected partial raw body, got %d %q", resp.StatusCode, resp.Raw)
	}
	if resp.EncryptedData != "" || resp.EncryptedKey != "" {
		t.Fatalf("partial body must not yield envelope fields, got %+v", resp)
	}
}

func TestSendTruncatedErrorKeepsPartialBody(t *testing.T) {
	body := `{"errorCode":"UPSTREAM_DOWN"}`
	server := truncatingServer(t, http.StatusBadGateway, body, 10)

	_, err := NewClient(time.Second, nil).Send(context.Background(), server.URL, "k", ports.EnvelopeRequest{})
	var typed *domainerrors.Error
	if !errors.As(err, &typed) || typed.Kind != domainerrors.KindTransport || typed.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected transport error with status, got %v", err)
	}
	if typed.Body != body[:10] {
		t.Fatalf("expected partial body on error, got %q", typed.Body)
	}
}

func TestSendTimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(50*time.Millisecond, nil)
	_, err := client.Send(context.Background(), server.URL, "k", ports.EnvelopeRequest{})
	if domainerrors.KindOf(err) != domainerrors.KindTransport {
		t.Fatalf("expected transport error on timeout, got %v", err)
	}
}

func TestSendUnreachableHost(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(time.Second, nil).Send(context.Background(), url, "k", ports.EnvelopeRequest{})
	if domainerrors.KindOf(err) != domainerrors.KindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
}
