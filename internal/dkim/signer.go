package dkim

import (
	"bufio"
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/textproto"
	"os"
	"strings"

	msgauthdkim "github.com/emersion/go-msgauth/dkim"

	"mailnotify/internal/config"
	"mailnotify/internal/email"
)

// signedHeaders are covered by every signature. Headers missing from a
// message are skipped by the signer.
var signedHeaders = []string{
	"From",
	"To",
	"Reply-To",
	"Subject",
	"Date",
	"Message-ID",
	"MIME-Version",
	"Content-Type",
}

// Signer adds a DKIM-Signature header to rendered notifications.
type Signer struct {
	// opts is copied for every message; an empty Domain is filled in from
	// the sender address.
	opts msgauthdkim.SignOptions
}

// New builds a Signer from the DKIM settings. It returns a nil Signer and
// no error when none of the settings are present.
func New(cfg config.DKIMConfig) (*Signer, error) {
	cfg.Selector = strings.TrimSpace(cfg.Selector)
	cfg.KeyPath = strings.TrimSpace(cfg.KeyPath)
	cfg.Domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(cfg.Domain)), ".")
	if cfg == (config.DKIMConfig{}) {
		return nil, nil
	}
	if cfg.Selector == "" {
		return nil, errors.New("dkim: a selector is required when enabling DKIM")
	}

	pemData, err := keyMaterial(cfg)
	if err != nil {
		return nil, err
	}
	key, err := parsePrivateKey(pemData)
	if err != nil {
		return nil, fmt.Errorf("dkim: parse private key: %w", err)
	}

	return &Signer{opts: msgauthdkim.SignOptions{
		Domain:                 cfg.Domain,
		Selector:               cfg.Selector,
		Signer:                 key,
		HeaderCanonicalization: msgauthdkim.CanonicalizationRelaxed,
		BodyCanonicalization:   msgauthdkim.CanonicalizationRelaxed,
		HeaderKeys:             signedHeaders,
	}}, nil
}

// Selector returns the DKIM selector.
func (s *Signer) Selector() string {
	if s == nil {
		return ""
	}
	return s.opts.Selector
}

// Domain returns the fixed signing domain, or "" when it follows the sender.
func (s *Signer) Domain() string {
	if s == nil {
		return ""
	}
	return s.opts.Domain
}

// Sign returns message with a DKIM-Signature header prepended. Line endings
// are normalized to CRLF first. Messages that already carry a signature are
// returned unchanged, and a nil Signer passes every message through.
func (s *Signer) Sign(message []byte, from string) ([]byte, error) {
	if s == nil || s.opts.Signer == nil {
		return message, nil
	}
	if signed(message) {
		return message, nil
	}

	opts := s.opts
	if opts.Domain == "" {
		domain, err := email.Domain(strings.Trim(strings.TrimSpace(from), "<>"))
		if err != nil {
			return nil, fmt.Errorf("dkim: signing domain: %w", err)
		}
		opts.Domain = domain
	}

	var out bytes.Buffer
	if err := msgauthdkim.Sign(&out, bytes.NewReader(crlf(message)), &opts); err != nil {
		return nil, fmt.Errorf("dkim: sign: %w", err)
	}
	return out.Bytes(), nil
}

func keyMaterial(cfg config.DKIMConfig) ([]byte, error) {
	if cfg.PrivateKey != "" {
		return []byte(cfg.PrivateKey), nil
	}
	if cfg.KeyPath == "" {
		return nil, errors.New("dkim: provide a key path or an inline private key")
	}
	data, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("dkim: read private key: %w", err)
	}
	return data, nil
}

// parsePrivateKey returns the first PKCS#1 or PKCS#8 key found in pemData.
func parsePrivateKey(pemData []byte) (crypto.Signer, error) {
	for block, rest := pem.Decode(pemData); block != nil; block, rest = pem.Decode(rest) {
		switch block.Type {
		case "RSA PRIVATE KEY":
			key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, err
			}
			return key, nil
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, err
			}
			signer, ok := key.(crypto.Signer)
			if !ok {
				return nil, fmt.Errorf("unsupported PKCS#8 key type %T", key)
			}
			return signer, nil
		}
	}
	return nil, errors.New("no private key found in PEM data")
}

// signed reports whether the header section already has a DKIM-Signature.
func signed(message []byte) bool {
	r := textproto.NewReader(bufio.NewReader(bytes.NewReader(message)))
	header, _ := r.ReadMIMEHeader()
	return len(header.Values("DKIM-Signature")) > 0
}

// crlf rewrites bare LF line endings as CRLF.
func crlf(data []byte) []byte {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(data, []byte("\n"), []byte("\r\n"))
}
