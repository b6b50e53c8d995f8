package delivery

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var deliverFunc = deliverSession

// DirectTransport delivers straight to the recipients' MX hosts without a relay.
type DirectTransport struct {
	heloName string
	tls      func(host string) (*tls.Config, error)
	signer   Signer
	log      *zap.SugaredLogger
}

// NewDirectTransport creates an MX delivery transport. tlsFor builds the
// STARTTLS configuration per MX host and may be nil to skip STARTTLS.
func NewDirectTransport(heloName string, tlsFor func(host string) (*tls.Config, error), signer Signer, log *zap.SugaredLogger) *DirectTransport {
	return &DirectTransport{
		heloName: heloName,
		tls:      tlsFor,
		signer:   signer,
		log:      named(log, "direct"),
	}
}

// Name implements Transport.
func (t *DirectTransport) Name() string { return "direct" }

// Send delivers msg to every recipient domain in turn. The attempt fails if
// any domain cannot be reached; domains that already accepted the message
// receive it again on retry.
func (t *DirectTransport) Send(ctx context.Context, msg Message) (Receipt, error) {
	if len(msg.To) == 0 {
		return Receipt{}, ErrNoRecipients
	}
	domains, groups, err := groupByDomain(msg.To)
	if err != nil {
		return Receipt{}, err
	}

	id := newMessageID()
	data, err := render(msg, id, t.signer)
	if err != nil {
		return Receipt{}, err
	}

	receipt := Receipt{MessageID: id, Transport: t.Name()}
	for _, domain := range domains {
		host, err := t.deliverDomain(ctx, domain, msg.From, groups[domain], data)
		if err != nil {
			return Receipt{}, err
		}
		receipt.Host = host
		receipt.Accepted = append(receipt.Accepted, groups[domain]...)
	}
	return receipt, nil
}

// deliverDomain tries each MX host of domain until one accepts the message.
func (t *DirectTransport) deliverDomain(ctx context.Context, domain, from string, to []string, data []byte) (string, error) {
	mxRecords, err := ResolveMX(ctx, domain)
	if err != nil {
		return "", fmt.Errorf("MX lookup failed for %s: %w", domain, err)
	}

	var lastErr error
	for _, mx := range mxRecords {
		err := deliverFunc(ctx, session{
			host:     mx.Host,
			heloName: t.heloName,
			tls:      t.tls,
			from:     from,
			to:       to,
			data:     data,
		})
		if err == nil {
			return mx.Host, nil
		}
		t.log.Debugw("MX host rejected delivery", "domain", domain, "host", mx.Host, "error", err)
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no MX host attempted")
	}
	return "", fmt.Errorf("delivery to %s failed: %w", domain, lastErr)
}
