// Package banksim is an in-process stand-in for the bank's hybrid-encrypted
// API. It holds the bank's private key, opens every request the way the bank
// would and answers with a sealed envelope for the caller's public key.
package banksim

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"bankpay/contexts/finance-core/bank-payment-service/domain/services"
	"bankpay/contexts/finance-core/bank-payment-service/ports"
)

// Call is one request as the bank saw it, after decryption.
type Call struct {
	Path      string
	APIKey    string
	Request   ports.EnvelopeRequest
	Plaintext string
}

// Reply controls the simulated answer. A non-nil Raw is written verbatim
// instead of a sealed envelope. Truncate sends the status line and only the
// first half of the body, then drops the connection.
type Reply struct {
	StatusCode int
	Raw        []byte
	Plaintext  string
	Truncate   bool
}

type Simulator struct {
	BankKey         *rsa.PrivateKey
	CallerPublicKey *rsa.PublicKey

	mu      sync.Mutex
	respond func(Call) Reply
	calls   []Call
}

// New generates a bank key pair and a caller key pair and returns the
// simulator together with the keyring the caller should use.
func New(bits int) (*Simulator, services.Keyring, error) {
	bankKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, services.Keyring{}, err
	}
	callerKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, services.Keyring{}, err
	}
	sim := &Simulator{
		BankKey:         bankKey,
		CallerPublicKey: &callerKey.PublicKey,
	}
	return sim, services.Keyring{
		BankPublicKey:    &bankKey.PublicKey,
		CallerPrivateKey: callerKey,
	}, nil
}

func (s *Simulator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var request ports.EnvelopeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, `{"errorCode":"INVALID_JSON"}`, http.StatusBadRequest)
		return
	}
	plaintext, err := s.Open(request)
	if err != nil {
		http.Error(w, `{"errorCode":"DECRYPTION_FAILED"}`, http.StatusBadRequest)
		return
	}

	call := Call{
		Path:      r.URL.Path,
		APIKey:    r.Header.Get("APIKEY"),
		Request:   request,
		Plaintext: plaintext,
	}
	s.mu.Lock()
	s.calls = append(s.calls, call)
	respond := s.respond
	s.mu.Unlock()

	reply := defaultReply(call)
	if respond != nil {
		reply = respond(call)
	}
	if reply.StatusCode == 0 {
		reply.StatusCode = http.StatusOK
	}

	body := reply.Raw
	if body == nil {
		sealed, err := s.Seal(reply.Plaintext)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		body = sealed
	}
	if reply.Truncate {
		_ = WriteTruncated(w, reply.StatusCode, body, len(body)/2)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.StatusCode)
	_, _ = w.Write(body)
}

// WriteTruncated announces the full body length, writes only the first sent
// bytes and closes the connection, so the client sees an unexpected EOF.
func WriteTruncated(w http.ResponseWriter, status int, body []byte, sent int) error {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		return errors.New("response writer cannot be hijacked")
	}
	conn, buf, err := hijacker.Hijack()
	if err != nil {
		return err
	}
	defer conn.Close()

	if sent > len(body) {
		sent = len(body)
	}
	fmt.Fprintf(buf, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))
	fmt.Fprintf(buf, "Content-Type: application/json\r\nContent-Length: %d\r\n\r\n", len(body))
	_, _ = buf.Write(body[:sent])
	return buf.Flush()
}

// Open decrypts a caller request with the bank's private key.
func (s *Simulator) Open(request ports.EnvelopeRequest) (string, error) {
	key, err := services.UnwrapSessionKey(request.EncryptedKey, s.BankKey)
	if err != nil {
		return "", err
	}
	iv, err := base64.StdEncoding.DecodeString(request.IV)
	if err != nil {
		return "", err
	}
	body, err := base64.StdEncoding.DecodeString(request.EncryptedData)
	if err != nil {
		return "", err
	}
	joined := base64.StdEncoding.EncodeToString(append(iv, body...))
	return services.DecryptPayload(joined, key)
}

// Seal builds a response envelope body: encryptedData is IV || ciphertext.
func (s *Simulator) Seal(plaintext string) ([]byte, error) {
	material, err := services.NewSessionMaterial(nil)
	if err != nil {
		return nil, err
	}
	encrypted, err := services.EncryptPayload([]byte(plaintext), material.Key, material.IV)
	if err != nil {
		return nil, err
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, err
	}
	encryptedKey, err := services.WrapSessionKey(material.Key, s.CallerPublicKey)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]string{
		"requestId":     "",
		"encryptedKey":  encryptedKey,
		"encryptedData": base64.StdEncoding.EncodeToString(append(append([]byte(nil), material.IV...), ciphertext...)),
	})
}

// RespondWith overrides the default success reply for later calls.
func (s *Simulator) RespondWith(fn func(Call) Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.respond = fn
}

func (s *Simulator) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

func defaultReply(call Call) Reply {
	var payload map[string]any
	_ = json.Unmarshal([]byte(call.Plaintext), &payload)
	body, _ := json.Marshal(map[string]any{
		"RESPONSE": "SUCCESS",
		"UNIQUEID": payload["UNIQUEID"],
		"MESSAGE":  "Request accepted",
	})
	return Reply{StatusCode: http.StatusOK, Plaintext: string(body)}
}
