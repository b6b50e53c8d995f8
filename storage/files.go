package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"mailnotify/delivery"
)

// DefaultDir is used when no spool directory is configured.
const DefaultDir = "./data/spool"

// Spool keeps undelivered messages on disk as .eml files.
type Spool struct {
	dir string
	now func() time.Time
}

// NewSpool returns a spool rooted at dir.
func NewSpool(dir string) *Spool {
	if dir == "" {
		dir = DefaultDir
	}
	return &Spool{dir: dir, now: time.Now}
}

// Dir returns the spool root.
func (s *Spool) Dir() string {
	return s.dir
}

// SaveMessage stores data for one recipient and returns the file path.
// Files are grouped by UTC day and named after id and a hash of the recipient.
func (s *Spool) SaveMessage(id, recipient string, data []byte) (string, error) {
	safeID, err := sanitizeComponent(id)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(s.dir, s.now().UTC().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	filename := filepath.Join(dir, fmt.Sprintf("%s_%s.eml", safeID, hashRecipient(recipient)))
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return "", err
	}
	return filename, nil
}

// Save renders a message whose delivery failed and writes one copy per
// recipient. The failure is recorded in X-Delivery-* headers.
func (s *Spool) Save(msg delivery.Message, out delivery.Outcome) error {
	id := uuid.NewString()
	data, err := delivery.Compose(msg, id)
	if err != nil {
		return fmt.Errorf("spool: %w", err)
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "X-Delivery-Attempts: %d\r\n", out.Attempts)
	if text := out.ErrorText(); text != "" {
		fmt.Fprintf(&b, "X-Delivery-Error: %s\r\n", strings.Join(strings.Fields(text), " "))
	}
	b.Write(data)

	var errs []error
	for _, rcpt := range msg.To {
		if _, err := s.SaveMessage(id, rcpt, b.Bytes()); err != nil {
			errs = append(errs, fmt.Errorf("spool %s: %w", rcpt, err))
		}
	}
	return errors.Join(errs...)
}

func sanitizeComponent(v string) (string, error) {
	if strings.ContainsAny(v, "/\\") || strings.Contains(v, "..") {
		return "", errors.New("invalid identifier")
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", errors.New("empty identifier")
	}
	return v, nil
}

func hashRecipient(addr string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(addr))))
	return hex.EncodeToString(sum[:8])
}
