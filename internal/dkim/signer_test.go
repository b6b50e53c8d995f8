package dkim

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mailnotify/internal/config"
)

func generatePEM(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return pem.EncodeToMemory(block)
}

func newSigner(t *testing.T, domain string) *Signer {
	t.Helper()
	signer, err := New(config.DKIMConfig{Selector: "mail", PrivateKey: string(generatePEM(t)), Domain: domain})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return signer
}

func TestNewDisabled(t *testing.T) {
	signer, err := New(config.DKIMConfig{Selector: "  "})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if signer != nil {
		t.Fatalf("expected nil signer when DKIM is not configured")
	}
}

func TestNewRequiresSelector(t *testing.T) {
	if _, err := New(config.DKIMConfig{PrivateKey: string(generatePEM(t))}); err == nil {
		t.Fatalf("expected error without selector")
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(config.DKIMConfig{Selector: "mail"}); err == nil {
		t.Fatalf("expected error without key material")
	}
	if _, err := New(config.DKIMConfig{Selector: "mail", PrivateKey: "not pem"}); err == nil {
		t.Fatalf("expected error for unparsable key")
	}
}

func TestNewInlineKey(t *testing.T) {
	signer := newSigner(t, " Example.com. ")
	if signer.Selector() != "mail" || signer.Domain() != "example.com" {
		t.Fatalf("unexpected signer settings %q/%q", signer.Selector(), signer.Domain())
	}
}

func TestNewKeyPathPKCS8(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "dkim.pem")
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	signer, err := New(config.DKIMConfig{Selector: "mail", KeyPath: path})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if signer == nil {
		t.Fatalf("expected signer")
	}
}

func TestNewMissingKeyFile(t *testing.T) {
	if _, err := New(config.DKIMConfig{Selector: "mail", KeyPath: filepath.Join(t.TempDir(), "absent.pem")}); err == nil {
		t.Fatalf("expected error for missing key file")
	}
}

func TestSignAddsHeader(t *testing.T) {
	signer := newSigner(t, "")

	raw := "From: Difitrades <Noreply@Example.COM>\nTo: user@example.net\nSubject: Test\n\nBody\n"
	out, err := signer.Sign([]byte(raw), "<Noreply@Example.COM>")
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	payload := string(out)
	if !strings.HasPrefix(payload, "DKIM-Signature:") {
		t.Fatalf("expected DKIM-Signature header first, got %q", payload)
	}
	if !strings.Contains(payload, "d=example.com") || !strings.Contains(payload, "s=mail") {
		t.Fatalf("expected signing domain from sender, got %q", payload)
	}
	if !strings.Contains(payload, "\r\nFrom: Difitrades <Noreply@Example.COM>\r\n") {
		t.Fatalf("expected CRLF normalized output, got %q", payload)
	}
}

func TestSignUsesConfiguredDomain(t *testing.T) {
	signer := newSigner(t, "mail.example.org")

	out, err := signer.Sign([]byte("From: a@example.com\r\n\r\nBody\r\n"), "a@example.com")
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	if !strings.Contains(string(out), "d=mail.example.org") {
		t.Fatalf("expected configured domain, got %q", out)
	}
}

func TestSignRejectsSenderWithoutDomain(t *testing.T) {
	signer := newSigner(t, "")
	if _, err := signer.Sign([]byte("From: nobody\r\n\r\nBody\r\n"), "nobody"); err == nil {
		t.Fatalf("expected error without a signing domain")
	}
}

func TestSignSkipsWhenHeaderPresent(t *testing.T) {
	signer := newSigner(t, "")

	raw := "DKIM-Signature: existing\r\nFrom: sender@example.com\r\n\r\nBody\r\n"
	out, err := signer.Sign([]byte(raw), "sender@example.com")
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	if string(out) != raw {
		t.Fatalf("expected message to remain unchanged when signature exists")
	}
}

func TestSignIgnoresSignatureTextInBody(t *testing.T) {
	signer := newSigner(t, "")

	raw := "From: sender@example.com\r\n\r\nDKIM-Signature: quoted in the body\r\n"
	out, err := signer.Sign([]byte(raw), "sender@example.com")
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	if !strings.HasPrefix(string(out), "DKIM-Signature:") || !strings.Contains(string(out), "bh=") {
		t.Fatalf("expected a new signature, got %q", out)
	}
}

func TestNilSignerPassesThrough(t *testing.T) {
	var signer *Signer
	raw := []byte("From: a@example.com\r\n\r\nBody\r\n")
	out, err := signer.Sign(raw, "a@example.com")
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	if string(out) != string(raw) {
		t.Fatalf("expected nil signer to pass message through")
	}
}

func TestCRLF(t *testing.T) {
	if got := string(crlf([]byte("a\nb\r\nc"))); got != "a\r\nb\r\nc" {
		t.Fatalf("unexpected normalization %q", got)
	}
}
