package services

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	domainerrors "bankpay/contexts/finance-core/bank-payment-service/domain/errors"
)

// Keyring holds the bank's public key (outbound key wrap) and the caller's
// private key (inbound key unwrap). Both are loaded once at startup.
type Keyring struct {
	BankPublicKey    *rsa.PublicKey
	CallerPrivateKey *rsa.PrivateKey
}

func LoadKeyring(bankPublicKeyFile string, callerPrivateKeyFile string) (Keyring, error) {
	const op = "load keyring"
	if strings.TrimSpace(bankPublicKeyFile) == "" || strings.TrimSpace(callerPrivateKeyFile) == "" {
		return Keyring{}, domainerrors.Config(op, fmt.Errorf("%w: key file paths", domainerrors.ErrMissingSetting))
	}
	pubBytes, err := os.ReadFile(bankPublicKeyFile)
	if err != nil {
		return Keyring{}, domainerrors.Config(op, fmt.Errorf("read bank public key: %w", err))
	}
	privBytes, err := os.ReadFile(callerPrivateKeyFile)
	if err != nil {
		return Keyring{}, domainerrors.Config(op, fmt.Errorf("read caller private key: %w", err))
	}

	pub, err := ParseBankPublicKey(pubBytes)
	if err != nil {
		return Keyring{}, err
	}
	priv, err := ParseCallerPrivateKey(privBytes)
	if err != nil {
		return Keyring{}, err
	}
	keyring := Keyring{BankPublicKey: pub, CallerPrivateKey: priv}
	return keyring, keyring.Validate()
}

func (k Keyring) Validate() error {
	if k.BankPublicKey == nil || k.BankPublicKey.N == nil {
		return domainerrors.Config("validate keyring", fmt.Errorf("%w: bank public key missing", domainerrors.ErrKeyMaterial))
	}
	if k.CallerPrivateKey == nil {
		return domainerrors.Config("validate keyring", fmt.Errorf("%w: caller private key missing", domainerrors.ErrKeyMaterial))
	}
	if err := k.CallerPrivateKey.Validate(); err != nil {
		return domainerrors.Config("validate keyring", fmt.Errorf("%w: %v", domainerrors.ErrKeyMaterial, err))
	}
	if k.BankPublicKey.Size()-pkcs1v15Overhead < SessionKeySize {
		return domainerrors.Config("validate keyring", fmt.Errorf("%w: bank public key too small", domainerrors.ErrKeyMaterial))
	}
	return nil
}

// ParseBankPublicKey accepts an X.509 certificate (PEM or DER), a PKIX
// "PUBLIC KEY" block or a PKCS#1 "RSA PUBLIC KEY" block.
func ParseBankPublicKey(data []byte) (*rsa.PublicKey, error) {
	const op = "parse bank public key"
	block, _ := pem.Decode(data)
	if block == nil {
		cert, err := x509.ParseCertificate(data)
		if err != nil {
			return nil, domainerrors.Config(op, fmt.Errorf("%w: no PEM block or DER certificate", domainerrors.ErrKeyMaterial))
		}
		return rsaPublicKey(op, cert.PublicKey)
	}

	switch block.Type {
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, domainerrors.Config(op, fmt.Errorf("%w: %v", domainerrors.ErrKeyMaterial, err))
		}
		return rsaPublicKey(op, cert.PublicKey)
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, domainerrors.Config(op, fmt.Errorf("%w: %v", domainerrors.ErrKeyMaterial, err))
		}
		return rsaPublicKey(op, key)
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, domainerrors.Config(op, fmt.Errorf("%w: %v", domainerrors.ErrKeyMaterial, err))
		}
		return key, nil
	default:
		return nil, domainerrors.Config(op, fmt.Errorf("%w: unexpected PEM block %q", domainerrors.ErrKeyMaterial, block.Type))
	}
}

// ParseCallerPrivateKey accepts PKCS#1 "RSA PRIVATE KEY" and PKCS#8 "PRIVATE KEY" blocks.
func ParseCallerPrivateKey(data []byte) (*rsa.PrivateKey, error) {
	const op = "parse caller private key"
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, domainerrors.Config(op, fmt.Errorf("%w: failed to decode PEM block", domainerrors.ErrKeyMaterial))
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, domainerrors.Config(op, fmt.Errorf("%w: %v", domainerrors.ErrKeyMaterial, err))
		}
		return key, nil
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, domainerrors.Config(op, fmt.Errorf("%w: %v", domainerrors.ErrKeyMaterial, err))
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, domainerrors.Config(op, fmt.Errorf("%w: private key is not RSA", domainerrors.ErrKeyMaterial))
		}
		return key, nil
	default:
		return nil, domainerrors.Config(op, fmt.Errorf("%w: unexpected PEM block %q", domainerrors.ErrKeyMaterial, block.Type))
	}
}

func rsaPublicKey(op string, key any) (*rsa.PublicKey, error) {
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, domainerrors.Config(op, fmt.Errorf("%w: public key is not RSA", domainerrors.ErrKeyMaterial))
	}
	return pub, nil
}
