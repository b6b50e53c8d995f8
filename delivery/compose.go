package delivery

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

// ErrNoRecipients is returned when a message has nobody to deliver to.
var ErrNoRecipients = errors.New("message has no recipients")

var now = time.Now

// Compose renders msg as an RFC 5322 document with the given Message-ID.
func Compose(msg Message, messageID string) ([]byte, error) {
	if len(msg.To) == 0 {
		return nil, ErrNoRecipients
	}

	m := gomail.NewMessage()
	if msg.FromName != "" {
		m.SetAddressHeader("From", msg.From, msg.FromName)
	} else {
		m.SetHeader("From", msg.From)
	}
	m.SetHeader("To", msg.To...)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@%s>", messageID, messageIDDomain(msg.From)))
	m.SetDateHeader("Date", now())
	m.SetBody("text/html", msg.HTML)

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("compose: %w", err)
	}
	return buf.Bytes(), nil
}

func messageIDDomain(from string) string {
	for i := len(from) - 1; i >= 0; i-- {
		if from[i] == '@' && i+1 < len(from) {
			return from[i+1:]
		}
	}
	return "localhost"
}
