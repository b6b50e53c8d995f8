package notify

import (
	"context"

	"go.uber.org/zap"

	"mailnotify/delivery"
	"mailnotify/internal/metrics"
)

// Sender delivers a composed message and reports the terminal outcome.
// *delivery.RetryingSender implements it.
type Sender interface {
	Send(ctx context.Context, msg delivery.Message) delivery.Outcome
}

// DeadLetter keeps messages that could not be delivered.
type DeadLetter interface {
	Save(msg delivery.Message, out delivery.Outcome) error
}

// Result is what every notice reports back: either a receipt or an error text.
type Result struct {
	Receipt  *delivery.Receipt `json:"receipt,omitempty"`
	Attempts int               `json:"attempts"`
	Error    string            `json:"error,omitempty"`
}

// OK reports whether the notification was delivered.
func (r Result) OK() bool {
	return r.Error == "" && r.Receipt != nil
}

// Notifier composes notices and sends them.
type Notifier struct {
	composer   *Composer
	sender     Sender
	deadLetter DeadLetter
	log        *zap.SugaredLogger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithDeadLetter stores messages whose delivery failed after all attempts.
func WithDeadLetter(dl DeadLetter) Option {
	return func(n *Notifier) {
		n.deadLetter = dl
	}
}

// NewNotifier returns a Notifier sending through sender.
func NewNotifier(composer *Composer, sender Sender, log *zap.SugaredLogger, opts ...Option) *Notifier {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	n := &Notifier{
		composer: composer,
		sender:   sender,
		log:      log.Named("notify"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Composer returns the composer used for every notice.
func (n *Notifier) Composer() *Composer {
	return n.composer
}

// WelcomeNotice greets a new user.
func (n *Notifier) WelcomeNotice(ctx context.Context, to string) Result {
	msg, err := n.composer.Welcome(to)
	return n.dispatch(ctx, "welcome", msg, err)
}

// OtpNotice sends a one-time verification code.
func (n *Notifier) OtpNotice(ctx context.Context, to, code string) Result {
	msg, err := n.composer.OTP(to, code)
	return n.dispatch(ctx, "otp", msg, err)
}

// PasswordResetNotice sends the password reset link.
func (n *Notifier) PasswordResetNotice(ctx context.Context, to string) Result {
	msg, err := n.composer.PasswordReset(to)
	return n.dispatch(ctx, "password_reset", msg, err)
}

// AdminAlert tells the administrator about a pending request.
func (n *Notifier) AdminAlert(ctx context.Context, req AdminAlertRequest) Result {
	msg, err := n.composer.AdminAlert(req)
	return n.dispatch(ctx, "admin_alert", msg, err)
}

// DepositNotice confirms a deposit.
func (n *Notifier) DepositNotice(ctx context.Context, tx Transaction) Result {
	msg, err := n.composer.Deposit(tx)
	return n.dispatch(ctx, "deposit", msg, err)
}

// WithdrawalNotice confirms a withdrawal.
func (n *Notifier) WithdrawalNotice(ctx context.Context, tx Transaction) Result {
	msg, err := n.composer.Withdrawal(tx)
	return n.dispatch(ctx, "withdrawal", msg, err)
}

// BroadcastNotice sends one message to many recipients.
func (n *Notifier) BroadcastNotice(ctx context.Context, to []string, subject, message string) Result {
	msg, err := n.composer.Broadcast(to, subject, message)
	return n.dispatch(ctx, "broadcast", msg, err)
}

// ContactFormNotice forwards a contact-form submission to support.
func (n *Notifier) ContactFormNotice(ctx context.Context, req ContactRequest) Result {
	msg, err := n.composer.ContactForm(req)
	return n.dispatch(ctx, "contact", msg, err)
}

// Deliver sends an already composed message and records the result under kind.
func (n *Notifier) Deliver(ctx context.Context, kind string, msg delivery.Message) Result {
	return n.dispatch(ctx, kind, msg, nil)
}

func (n *Notifier) dispatch(ctx context.Context, kind string, msg delivery.Message, err error) Result {
	if err != nil {
		n.log.Warnw("Notification rejected", "kind", kind, "error", err)
		metrics.Notifications.WithLabelValues(kind, "invalid").Inc()
		return Result{Error: err.Error()}
	}

	out := n.sender.Send(ctx, msg)
	return n.Record(kind, msg, out)
}

// Record converts an outcome into a Result, logging it and parking failed
// messages in the dead-letter sink.
func (n *Notifier) Record(kind string, msg delivery.Message, out delivery.Outcome) Result {
	if out.OK() {
		metrics.Notifications.WithLabelValues(kind, "sent").Inc()
		return Result{Receipt: out.Receipt, Attempts: out.Attempts}
	}

	metrics.Notifications.WithLabelValues(kind, "failed").Inc()
	n.log.Errorw("Notification failed",
		"kind", kind,
		"recipients", len(msg.To),
		"attempts", out.Attempts,
		"errors", len(out.AttemptErrors),
		"error", out.Err)
	if n.deadLetter != nil {
		if err := n.deadLetter.Save(msg, out); err != nil {
			n.log.Warnw("Failed to store undelivered notification", "kind", kind, "error", err)
		}
	}
	return Result{Attempts: out.Attempts, Error: out.ErrorText()}
}
