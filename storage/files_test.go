package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mailnotify/delivery"
)

func fixedSpool(t *testing.T) *Spool {
	t.Helper()
	s := NewSpool(t.TempDir())
	s.now = func() time.Time { return time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC) }
	return s
}

func TestSaveMessage(t *testing.T) {
	s := fixedSpool(t)

	path, err := s.SaveMessage("abc123", "Recipient@example.com", []byte("body"))
	if err != nil {
		t.Fatalf("SaveMessage returned error: %v", err)
	}

	if filepath.Base(filepath.Dir(path)) != "2024-03-09" {
		t.Fatalf("expected day directory, got %q", path)
	}
	name := filepath.Base(path)
	if strings.Contains(name, "recipient@example.com") {
		t.Fatalf("expected recipient to be hashed, got %q", name)
	}
	if !strings.HasPrefix(name, "abc123_") || !strings.HasSuffix(name, ".eml") {
		t.Fatalf("unexpected file name %q", name)
	}
	if hashRecipient("Recipient@example.com") != hashRecipient(" recipient@example.com") {
		t.Fatalf("expected recipient hash to ignore case and spacing")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "body" {
		t.Fatalf("expected message body, got %q", string(data))
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 permissions, got %o", perm)
	}
}

func TestSaveMessageSanitizesID(t *testing.T) {
	s := fixedSpool(t)

	for _, id := range []string{"../bad", "a/b", `a\b`, "  "} {
		if _, err := s.SaveMessage(id, "recipient@example.com", []byte("body")); err == nil {
			t.Fatalf("expected error for identifier %q", id)
		}
	}
}

func TestSaveFailedMessage(t *testing.T) {
	s := fixedSpool(t)

	msg := delivery.Message{
		From:    "noreply@example.com",
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "Deposit!",
		HTML:    "<p>hi</p>",
	}
	out := delivery.Outcome{
		Err:      &delivery.TransportError{Attempt: 3, Err: errors.New("421 service\nnot available")},
		Attempts: 3,
	}
	if err := s.Save(msg, out); err != nil {
		t.Fatalf("Save: %v", err)
	}

	files, err := os.ReadDir(filepath.Join(s.Dir(), "2024-03-09"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected one file per recipient, got %d", len(files))
	}

	data, err := os.ReadFile(filepath.Join(s.Dir(), "2024-03-09", files[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "X-Delivery-Attempts: 3\r\nX-Delivery-Error: 421 service not available\r\n") {
		t.Fatalf("missing delivery headers:\n%s", text)
	}
	if !strings.Contains(text, "Subject: Deposit!") {
		t.Fatalf("expected composed message, got:\n%s", text)
	}
}

func TestSaveWithoutRecipients(t *testing.T) {
	s := fixedSpool(t)
	if err := s.Save(delivery.Message{From: "a@example.com"}, delivery.Outcome{}); !errors.Is(err, delivery.ErrNoRecipients) {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}
}
