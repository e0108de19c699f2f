package services

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"io"
	"unicode/utf8"

	domainerrors "bankpay/contexts/finance-core/bank-payment-service/domain/errors"
)

const (
	SessionKeySize = 16
	IVSize         = aes.BlockSize

	// pkcs1v15Overhead is the minimum padding RSA PKCS#1 v1.5 encryption adds.
	pkcs1v15Overhead = 11
)

// SessionMaterial is the per-envelope symmetric key and IV.
type SessionMaterial struct {
	Key []byte
	IV  []byte
}

// NewSessionMaterial draws a fresh key and IV. Callers must not reuse the
// result for more than one envelope.
func NewSessionMaterial(random io.Reader) (SessionMaterial, error) {
	if random == nil {
		random = rand.Reader
	}
	buf := make([]byte, SessionKeySize+IVSize)
	if _, err := io.ReadFull(random, buf); err != nil {
		return SessionMaterial{}, domainerrors.Crypto("generate session material")
	}
	return SessionMaterial{
		Key: buf[:SessionKeySize:SessionKeySize],
		IV:  buf[SessionKeySize:],
	}, nil
}

func (m SessionMaterial) EncodedKey() string {
	return base64.StdEncoding.EncodeToString(m.Key)
}

func (m SessionMaterial) EncodedIV() string {
	return base64.StdEncoding.EncodeToString(m.IV)
}

// EncryptPayload pads plaintext with PKCS#7 and encrypts it with AES-CBC.
// The AES variant follows the key length.
func EncryptPayload(plaintext []byte, key []byte, iv []byte) (string, error) {
	const op = "encrypt payload"
	if len(iv) != IVSize {
		return "", domainerrors.Crypto(op)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", domainerrors.Crypto(op)
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// WrapSessionKey encrypts the raw session key for the bank with RSA PKCS#1 v1.5.
func WrapSessionKey(sessionKey []byte, bankPublicKey *rsa.PublicKey) (string, error) {
	const op = "wrap session key"
	if bankPublicKey == nil || bankPublicKey.N == nil {
		return "", domainerrors.Crypto(op)
	}
	if len(sessionKey) == 0 || len(sessionKey) > bankPublicKey.Size()-pkcs1v15Overhead {
		return "", domainerrors.Crypto(op)
	}
	wrapped, err := rsa.EncryptPKCS1v15(rand.Reader, bankPublicKey, sessionKey)
	if err != nil {
		return "", domainerrors.Crypto(op)
	}
	return base64.StdEncoding.EncodeToString(wrapped), nil
}

// UnwrapSessionKey recovers the bank's session key. Every failure mode maps to
// the same opaque error.
func UnwrapSessionKey(encoded string, callerPrivateKey *rsa.PrivateKey) ([]byte, error) {
	const op = "unwrap session key"
	if callerPrivateKey == nil {
		return nil, domainerrors.Crypto(op)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, domainerrors.Crypto(op)
	}
	key, err := rsa.DecryptPKCS1v15(nil, callerPrivateKey, raw)
	if err != nil {
		return nil, domainerrors.Crypto(op)
	}
	return key, nil
}

// DecryptPayload decodes IV(16) || ciphertext and returns the UTF-8 plaintext.
func DecryptPayload(encoded string, sessionKey []byte) (string, error) {
	const op = "decrypt payload"
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", domainerrors.Crypto(op)
	}
	if len(raw) < IVSize+aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return "", domainerrors.Crypto(op)
	}
	block, err := aes.NewCipher(sessionKey)
	if err != nil {
		return "", domainerrors.Crypto(op)
	}
	iv, body := raw[:IVSize], raw[IVSize:]
	out := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, body)

	plaintext, ok := pkcs7Unpad(out, aes.BlockSize)
	if !ok || !utf8.Valid(plaintext) {
		return "", domainerrors.Crypto(op)
	}
	return string(plaintext), nil
}

// OpenEnvelope unwraps the response session key and decrypts the response body.
func OpenEnvelope(encryptedData string, encryptedKey string, callerPrivateKey *rsa.PrivateKey) (string, error) {
	if encryptedData == "" || encryptedKey == "" {
		return "", domainerrors.Crypto("open envelope")
	}
	key, err := UnwrapSessionKey(encryptedKey, callerPrivateKey)
	if err != nil {
		return "", err
	}
	return DecryptPayload(encryptedData, key)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append(make([]byte, 0, len(data)+n), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, false
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, false
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, false
		}
	}
	return data[:len(data)-n], true
}
