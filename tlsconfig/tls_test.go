package tlsconfig

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestClientDefaults(t *testing.T) {
	conf, err := Client("smtp.example.com", false, "")
	if err != nil {
		t.Fatalf("Client error: %v", err)
	}
	if conf.ServerName != "smtp.example.com" {
		t.Fatalf("expected ServerName smtp.example.com, got %q", conf.ServerName)
	}
	if conf.MinVersion != tls.VersionTLS12 {
		t.Fatalf("expected MinVersion TLS1.2, got %d", conf.MinVersion)
	}
	if conf.InsecureSkipVerify {
		t.Fatalf("expected verification enabled by default")
	}
	if conf.RootCAs != nil {
		t.Fatalf("expected system roots when no CA bundle is configured")
	}
}

func TestClientInsecure(t *testing.T) {
	conf, err := Client("relay.internal", true, "")
	if err != nil {
		t.Fatalf("Client error: %v", err)
	}
	if !conf.InsecureSkipVerify {
		t.Fatalf("expected InsecureSkipVerify")
	}
}

func TestClientWithCABundle(t *testing.T) {
	caPath := generateSelfSignedCert(t, t.TempDir())

	conf, err := Client("smtp.test", false, caPath)
	if err != nil {
		t.Fatalf("Client error: %v", err)
	}
	if conf.RootCAs == nil {
		t.Fatalf("expected RootCAs to be populated")
	}
}

func TestClientRejectsEmptyBundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pem")
	if err := os.WriteFile(path, []byte("not a certificate"), 0o600); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	if _, err := Client("smtp.test", false, path); !errors.Is(err, ErrNoCertificates) {
		t.Fatalf("expected ErrNoCertificates, got %v", err)
	}
}

func TestClientMissingBundle(t *testing.T) {
	if _, err := Client("smtp.test", false, filepath.Join(t.TempDir(), "absent.pem")); err == nil {
		t.Fatalf("expected error for missing CA bundle")
	}
}

func generateSelfSignedCert(t *testing.T, dir string) string {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			CommonName:   "smtp.test",
			Organization: []string{"mailnotify"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}

	certOut, err := os.Create(filepath.Join(dir, "ca.pem"))
	if err != nil {
		t.Fatalf("Create cert file: %v", err)
	}
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		t.Fatalf("Encode cert: %v", err)
	}
	if err := certOut.Close(); err != nil {
		t.Fatalf("Close cert file: %v", err)
	}
	return certOut.Name()
}
