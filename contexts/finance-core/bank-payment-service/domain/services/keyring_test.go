package services

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	domainerrors "bankpay/contexts/finance-core/bank-payment-service/domain/errors"
)

func writePEM(t *testing.T, dir string, name string, blockType string, der []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func selfSignedCertificate(t *testing.T) []byte {
	t.Helper()
	key := rsaTestKey(t)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject:      pkix.Name{CommonName: "bank-api"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	return der
}

func TestParseBankPublicKeyFormats(t *testing.T) {
	key := rsaTestKey(t)
	pkixDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal pkix: %v", err)
	}
	cert := selfSignedCertificate(t)

	inputs := map[string][]byte{
		"certificate pem": pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert}),
		"certificate der": cert,
		"pkix":            pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pkixDER}),
		"pkcs1":           pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&key.PublicKey)}),
	}
	for name, data := range inputs {
		pub, err := ParseBankPublicKey(data)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if pub.N.Cmp(key.PublicKey.N) != 0 {
			t.Fatalf("%s: modulus mismatch", name)
		}
	}
}

func TestParseBankPublicKeyRejectsNonRSA(t *testing.T) {
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate ecdsa key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&ecKey.PublicKey)
	if err != nil {
		t.Fatalf("marshal pkix: %v", err)
	}
	_, err = ParseBankPublicKey(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
	if !errors.Is(err, domainerrors.ErrKeyMaterial) || domainerrors.KindOf(err) != domainerrors.KindConfig {
		t.Fatalf("expected config key material error, got %v", err)
	}
	if _, err := ParseBankPublicKey([]byte("garbage")); !errors.Is(err, domainerrors.ErrKeyMaterial) {
		t.Fatalf("expected key material error for garbage, got %v", err)
	}
}

func TestParseCallerPrivateKeyFormats(t *testing.T) {
	key := rsaTestKey(t)
	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal pkcs8: %v", err)
	}
	for name, data := range map[string][]byte{
		"pkcs1": pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}),
		"pkcs8": pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8}),
	} {
		parsed, err := ParseCallerPrivateKey(data)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if parsed.D.Cmp(key.D) != 0 {
			t.Fatalf("%s: private exponent mismatch", name)
		}
	}

	if _, err := ParseCallerPrivateKey(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: []byte{1}})); !errors.Is(err, domainerrors.ErrKeyMaterial) {
		t.Fatalf("expected key material error for unexpected block, got %v", err)
	}
}

func TestLoadKeyring(t *testing.T) {
	key := rsaTestKey(t)
	dir := t.TempDir()
	pubPath := writePEM(t, dir, "bank.crt", "CERTIFICATE", selfSignedCertificate(t))
	privPath := writePEM(t, dir, "caller.key", "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key))

	keyring, err := LoadKeyring(pubPath, privPath)
	if err != nil {
		t.Fatalf("load keyring: %v", err)
	}
	if keyring.BankPublicKey == nil || keyring.CallerPrivateKey == nil {
		t.Fatalf("expected both keys to be loaded")
	}
}

func TestLoadKeyringFailsOnMissingFiles(t *testing.T) {
	_, err := LoadKeyring("", "")
	if !errors.Is(err, domainerrors.ErrMissingSetting) {
		t.Fatalf("expected missing setting error, got %v", err)
	}

	dir := t.TempDir()
	_, err = LoadKeyring(filepath.Join(dir, "absent.pem"), filepath.Join(dir, "absent.key"))
	if domainerrors.KindOf(err) != domainerrors.KindConfig {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestKeyringValidateRequiresBothKeys(t *testing.T) {
	key := rsaTestKey(t)
	if err := (Keyring{CallerPrivateKey: key}).Validate(); !errors.Is(err, domainerrors.ErrKeyMaterial) {
		t.Fatalf("expected key material error without bank key, got %v", err)
	}
	if err := (Keyring{BankPublicKey: &key.PublicKey}).Validate(); !errors.Is(err, domainerrors.ErrKeyMaterial) {
		t.Fatalf("expected key material error without caller key, got %v", err)
	}
	if err := (Keyring{BankPublicKey: &key.PublicKey, CallerPrivateKey: key}).Validate(); err != nil {
		t.Fatalf("expected valid keyring, got %v", err)
	}
}
