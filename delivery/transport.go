package delivery

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transport hands a single message to the outside world. Implementations
// make one attempt per call; retries belong to RetryingSender.
type Transport interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
	Name() string
}

// TransportFunc adapts a plain function to the Transport interface.
type TransportFunc func(ctx context.Context, msg Message) (Receipt, error)

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, msg Message) (Receipt, error) {
	return f(ctx, msg)
}

// Name identifies function transports in logs and metrics.
func (f TransportFunc) Name() string {
	return "func"
}

// Signer signs a rendered message. A nil Signer leaves messages untouched.
type Signer interface {
	Sign(message []byte, from string) ([]byte, error)
}

var newMessageID = func() string {
	return uuid.NewString()
}

func named(log *zap.SugaredLogger, name string) *zap.SugaredLogger {
	if log == nil {
		return zap.NewNop().Sugar()
	}
	return log.Named(name)
}

// LogTransport logs messages instead of sending them. Useful for development.
type LogTransport struct {
	log *zap.SugaredLogger
}

// NewLogTransport creates a transport that only logs.
func NewLogTransport(log *zap.SugaredLogger) *LogTransport {
	return &LogTransport{log: named(log, "log-transport")}
}

// Name implements Transport.
func (t *LogTransport) Name() string { return "log" }

// Send logs the message and reports it as accepted.
func (t *LogTransport) Send(_ context.Context, msg Message) (Receipt, error) {
	id := newMessageID()
	t.log.Infow("EMAIL (dev mode - not actually sent)",
		"messageID", id,
		"from", msg.From,
		"to", msg.To,
		"replyTo", msg.ReplyTo,
		"subject", msg.Subject,
		"html", msg.HTML)
	return Receipt{
		MessageID: id,
		Transport: t.Name(),
		Accepted:  msg.Recipients(),
	}, nil
}
