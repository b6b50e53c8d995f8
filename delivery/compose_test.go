package delivery

import (
	"bytes"
	"io"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t *testing.T) {
	t.Helper()
	original := now
	now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = original })
}

func TestCompose(t *testing.T) {
	fixedClock(t)
	msg := Message{
		From:     "noreply@example.com",
		FromName: "Difitrades",
		To:       []string{"a@example.com", "b@example.com"},
		ReplyTo:  "customer@example.org",
		Subject:  "Deposit!",
		HTML:     "<p>Hello</p>",
	}

	data, err := Compose(msg, "abc-123")
	require.NoError(t, err)
	raw := string(data)

	assert.Contains(t, raw, "From: \"Difitrades\" <noreply@example.com>")
	assert.Contains(t, raw, "To: a@example.com, b@example.com")
	assert.Contains(t, raw, "Reply-To: customer@example.org")
	assert.Contains(t, raw, "Subject: Deposit!")
	assert.Contains(t, raw, "Message-ID: <abc-123@example.com>")
	assert.Contains(t, raw, "Content-Type: text/html; charset=UTF-8")
	assert.Contains(t, raw, "<p>Hello</p>")
}

func TestComposeIsDeterministic(t *testing.T) {
	fixedClock(t)
	msg := testMessage()
	first, err := Compose(msg, "same-id")
	require.NoError(t, err)
	second, err := Compose(msg, "same-id")
	require.NoError(t, err)

	// gomail does not order headers, so compare them parsed.
	a, err := mail.ReadMessage(bytes.NewReader(first))
	require.NoError(t, err)
	b, err := mail.ReadMessage(bytes.NewReader(second))
	require.NoError(t, err)
	assert.Equal(t, a.Header, b.Header)
	bodyA, err := io.ReadAll(a.Body)
	require.NoError(t, err)
	bodyB, err := io.ReadAll(b.Body)
	require.NoError(t, err)
	assert.Equal(t, bodyA, bodyB)
}

func TestComposeWithoutRecipients(t *testing.T) {
	_, err := Compose(Message{From: "noreply@example.com"}, "id")
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestComposeWithoutDisplayName(t *testing.T) {
	fixedClock(t)
	data, err := Compose(testMessage(), "id")
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "From: noreply@example.com"))
}

func TestMessageIDDomain(t *testing.T) {
	assert.Equal(t, "example.com", messageIDDomain("noreply@example.com"))
	assert.Equal(t, "localhost", messageIDDomain("broken@"))
	assert.Equal(t, "localhost", messageIDDomain(""))
}
