package queue

import (
	"context"

	"mailnotify/delivery"
)

// Sender delivers one message and reports the terminal outcome.
// *delivery.RetryingSender implements it.
type Sender interface {
	Send(ctx context.Context, msg delivery.Message) delivery.Outcome
}

// Job is a message waiting to be handed to the Sender.
type Job struct {
	ID      string
	Kind    string
	Message delivery.Message
	// Done, if set, is called from the worker goroutine with the outcome.
	Done func(Job, delivery.Outcome)
}
