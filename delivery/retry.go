package delivery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailnotify/internal/metrics"
)

const (
	// DefaultMaxAttempts is used when RetryPolicy.MaxAttempts is not positive.
	DefaultMaxAttempts = 3
	maxBackoff         = 30 * time.Second
)

// RetryPolicy bounds how often a message is handed to the transport.
// A zero Backoff retries immediately.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy returns three immediate attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts}
}

// Attempts returns the effective attempt bound; values below one mean one.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// delay returns the wait before the attempt following attempt n.
func (p RetryPolicy) delay(n int) time.Duration {
	if p.Backoff <= 0 {
		return 0
	}
	d := p.Backoff * time.Duration(1<<uint(min(n-1, 10)))
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// RetryingSender delivers one message at a time through a Transport,
// retrying failed attempts up to the policy bound. Attempts never overlap.
// A retry after a failure the remote side already acted on can deliver the
// same message twice.
type RetryingSender struct {
	transport Transport
	policy    RetryPolicy
	log       *zap.SugaredLogger
}

// NewRetryingSender wraps transport with the given policy.
func NewRetryingSender(transport Transport, policy RetryPolicy, log *zap.SugaredLogger) *RetryingSender {
	return &RetryingSender{
		transport: transport,
		policy:    policy,
		log:       named(log, "retry"),
	}
}

// Policy returns the sender's retry policy.
func (s *RetryingSender) Policy() RetryPolicy {
	return s.policy
}

// Send attempts delivery until the first success or until the policy is
// exhausted, and reports the terminal Outcome. It never panics and never
// returns an error value outside the Outcome. Only the last attempt's error
// is surfaced as Outcome.Err.
func (s *RetryingSender) Send(ctx context.Context, msg Message) Outcome {
	name := s.transport.Name()
	maxAttempts := s.policy.Attempts()
	var out Outcome

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if out.Err == nil {
				out.Err = err
			}
			s.log.Warnw("Delivery abandoned, context done",
				"subject", msg.Subject,
				"attempts", out.Attempts,
				"error", err)
			metrics.MessagesFailed.WithLabelValues(name).Inc()
			return out
		}

		out.Attempts = attempt
		metrics.SendAttempts.WithLabelValues(name).Inc()
		s.log.Debugw("Sending message",
			"subject", msg.Subject,
			"recipients", len(msg.To),
			"attempt", attempt,
			"maxAttempts", maxAttempts)

		receipt, err := s.attempt(ctx, msg)
		if err == nil {
			s.log.Infow("Message sent",
				"messageID", receipt.MessageID,
				"recipients", len(msg.To),
				"attempt", attempt)
			metrics.MessagesSent.WithLabelValues(name).Inc()
			out.Receipt = &receipt
			out.Err = nil
			return out
		}

		terr := &TransportError{Attempt: attempt, Err: err}
		out.Err = terr
		out.AttemptErrors = append(out.AttemptErrors, err)

		if attempt == maxAttempts {
			s.log.Errorw("Message failed after all attempts",
				"subject", msg.Subject,
				"attempts", attempt,
				"error", err)
			metrics.MessagesFailed.WithLabelValues(name).Inc()
			return out
		}

		wait := s.policy.delay(attempt)
		s.log.Warnw("Send attempt failed, retrying",
			"subject", msg.Subject,
			"attempt", attempt,
			"maxAttempts", maxAttempts,
			"retryIn", wait,
			"error", err)
		metrics.SendRetries.WithLabelValues(name).Inc()
		if wait > 0 {
			sleep(ctx, wait)
		}
	}
	return out
}

// attempt calls the transport once, turning a panic into an error.
func (s *RetryingSender) attempt(ctx context.Context, msg Message) (receipt Receipt, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("panic in transport recovered", "panic", r)
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()
	return s.transport.Send(ctx, msg)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
