package delivery

import (
	"errors"
	"fmt"
)

// Message is a fully composed notification ready for delivery.
type Message struct {
	From     string
	FromName string
	To       []string
	ReplyTo  string
	Subject  string
	HTML     string
}

// Recipients returns a copy of the recipient list.
func (m Message) Recipients() []string {
	return append([]string(nil), m.To...)
}

// Receipt is what a transport reports back for an accepted message.
type Receipt struct {
	MessageID string
	Transport string
	Host      string
	Accepted  []string
}

// TransportError wraps the error of a single failed send attempt.
type TransportError struct {
	Attempt int
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("attempt %d: %v", e.Attempt, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Outcome is the terminal result of RetryingSender.Send. Exactly one of
// Receipt and Err is set.
type Outcome struct {
	Receipt  *Receipt
	Err      error
	Attempts int
	// AttemptErrors holds the error of every failed attempt, oldest first.
	AttemptErrors []error
}

// OK reports whether the message was delivered.
func (o Outcome) OK() bool {
	return o.Receipt != nil && o.Err == nil
}

// ErrorText returns the final transport error text, or "" on success.
func (o Outcome) ErrorText() string {
	if o.Err == nil {
		return ""
	}
	var te *TransportError
	if errors.As(o.Err, &te) {
		return te.Err.Error()
	}
	return o.Err.Error()
}
