package notify

import (
	"fmt"
	"html/template"
	"time"

	"mailnotify/delivery"
	"mailnotify/internal/email"
)

// AdminAlertRequest describes a transaction that needs an administrator's attention.
type AdminAlertRequest struct {
	UserEmail string `validate:"required,email"`
	Amount    string `validate:"required"`
	Date      string `validate:"required"`
	// Kind is the request type, e.g. "deposit" or "withdrawal".
	Kind string `validate:"required"`
}

// Transaction is a completed deposit or withdrawal for a user.
type Transaction struct {
	FullName string `validate:"required"`
	Amount   string `validate:"required"`
	Date     string `validate:"required"`
	Email    string `validate:"required"`
}

// ContactRequest is a message submitted through the contact form.
type ContactRequest struct {
	Name    string `validate:"required"`
	Email   string `validate:"required,email"`
	Subject string `validate:"required"`
	Message string `validate:"required"`
}

// view is the data every content template receives.
type view struct {
	Brand    string
	Support  string
	Code     string
	Validity string
	ResetURL string

	UserEmail string
	Kind      string
	FullName  string
	Amount    string
	Date      string

	Message string
	Contact ContactRequest
}

// Composer builds notification messages. All methods are pure.
type Composer struct {
	settings Settings
	layout   *Layout
}

// NewComposer validates settings and returns a Composer.
func NewComposer(settings Settings) (*Composer, error) {
	s, err := settings.validate()
	if err != nil {
		return nil, err
	}
	return &Composer{settings: s, layout: NewLayout(s.BrandName)}, nil
}

// Settings returns the effective settings after defaults were applied.
func (c *Composer) Settings() Settings {
	return c.settings
}

// Welcome greets a newly registered user.
func (c *Composer) Welcome(to string) (delivery.Message, error) {
	return c.compose([]string{to}, "", fmt.Sprintf("Welcome to %s!", c.settings.BrandName), "welcome", c.view())
}

// OTP sends a one-time verification code.
func (c *Composer) OTP(to, code string) (delivery.Message, error) {
	if code == "" {
		return delivery.Message{}, fmt.Errorf("%w: empty verification code", ErrInvalidRequest)
	}
	v := c.view()
	v.Code = code
	v.Validity = humanDuration(c.settings.OTPValidity)
	return c.compose([]string{to}, "", fmt.Sprintf("%s Verification Code", c.settings.BrandName), "otp", v)
}

// PasswordReset links the user to the password reset page.
func (c *Composer) PasswordReset(to string) (delivery.Message, error) {
	v := c.view()
	v.ResetURL = c.settings.ResetURL
	return c.compose([]string{to}, "", "Password Reset!", "password_reset", v)
}

// AdminAlert notifies the administrator address about a pending request.
func (c *Composer) AdminAlert(req AdminAlertRequest) (delivery.Message, error) {
	if err := validateRequest(req); err != nil {
		return delivery.Message{}, err
	}
	v := c.view()
	v.UserEmail = req.UserEmail
	v.Amount = req.Amount
	v.Date = req.Date
	v.Kind = req.Kind
	return c.compose([]string{c.settings.AdminAddress}, "", "Admin Alert!", "admin_alert", v)
}

// Deposit confirms a successful deposit.
func (c *Composer) Deposit(tx Transaction) (delivery.Message, error) {
	return c.transaction(tx, "Deposit!", "deposit")
}

// Withdrawal confirms a successful withdrawal.
func (c *Composer) Withdrawal(tx Transaction) (delivery.Message, error) {
	return c.transaction(tx, "Withdrawal!", "withdrawal")
}

func (c *Composer) transaction(tx Transaction, subject, name string) (delivery.Message, error) {
	if err := validateRequest(tx); err != nil {
		return delivery.Message{}, err
	}
	v := c.view()
	v.FullName = tx.FullName
	v.Amount = tx.Amount
	v.Date = tx.Date
	return c.compose([]string{tx.Email}, "", subject, name, v)
}

// Broadcast sends one message with the given subject to every recipient.
func (c *Composer) Broadcast(to []string, subject, message string) (delivery.Message, error) {
	subject = singleLine(subject)
	if subject == "" || message == "" {
		return delivery.Message{}, fmt.Errorf("%w: broadcast needs a subject and a message", ErrInvalidRequest)
	}
	v := c.view()
	v.Message = message
	return c.compose(to, "", subject, "broadcast", v)
}

// ContactForm forwards a contact-form submission to the support address.
// Replies go to the person who filled in the form.
func (c *Composer) ContactForm(req ContactRequest) (delivery.Message, error) {
	if err := validateRequest(req); err != nil {
		return delivery.Message{}, err
	}
	replyTo, err := email.Normalize(req.Email)
	if err != nil {
		return delivery.Message{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	v := c.view()
	v.Contact = req
	subject := "New Contact Us Message: " + singleLine(req.Subject)
	return c.compose([]string{c.settings.SupportAddress}, replyTo, subject, "contact", v)
}

func (c *Composer) view() view {
	return view{
		Brand:   c.settings.BrandName,
		Support: c.settings.SupportAddress,
	}
}

// compose validates recipients, renders the named content template and
// wraps it in the layout.
func (c *Composer) compose(to []string, replyTo, subject, name string, v view) (delivery.Message, error) {
	recipients, err := email.NormalizeAll(to)
	if err != nil {
		return delivery.Message{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	for _, rcpt := range recipients {
		if err := email.CheckDomain(rcpt, c.settings.RecipientDomains); err != nil {
			return delivery.Message{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}

	content, err := execute(name, v)
	if err != nil {
		return delivery.Message{}, fmt.Errorf("notify: render %s: %w", name, err)
	}
	body, err := c.layout.Wrap(template.HTML(content))
	if err != nil {
		return delivery.Message{}, fmt.Errorf("notify: render layout: %w", err)
	}

	return delivery.Message{
		From:     c.settings.SenderAddress,
		FromName: c.settings.SenderName,
		To:       recipients,
		ReplyTo:  replyTo,
		Subject:  subject,
		HTML:     body,
	}, nil
}

// humanDuration formats validity windows such as "5 minutes" or "1 hour".
func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return plural(int(d.Round(time.Second)/time.Second), "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
