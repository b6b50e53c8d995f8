package delivery

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// RelayConfig describes the SMTP submission server.
type RelayConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	LocalName string
}

type dialer interface {
	Dial() (gomail.SendCloser, error)
}

// RelayTransport submits messages to a single authenticated SMTP relay.
type RelayTransport struct {
	dialer dialer
	host   string
	port   int
	signer Signer
	log    *zap.SugaredLogger
}

// NewRelayTransport creates a relay transport. tlsConf and signer are optional.
func NewRelayTransport(cfg RelayConfig, tlsConf *tls.Config, signer Signer, log *zap.SugaredLogger) *RelayTransport {
	log = named(log, "relay")
	log.Infow("Initializing SMTP relay transport",
		"host", cfg.Host,
		"port", cfg.Port,
		"user", cfg.Username)

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if tlsConf != nil {
		d.TLSConfig = tlsConf
	}
	if cfg.LocalName != "" {
		d.LocalName = cfg.LocalName
	}
	return &RelayTransport{
		dialer: d,
		host:   cfg.Host,
		port:   cfg.Port,
		signer: signer,
		log:    log,
	}
}

// Name implements Transport.
func (t *RelayTransport) Name() string { return "relay" }

// Send renders, signs and submits msg in one SMTP session.
func (t *RelayTransport) Send(ctx context.Context, msg Message) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	id := newMessageID()
	data, err := render(msg, id, t.signer)
	if err != nil {
		return Receipt{}, err
	}

	sc, err := t.dialer.Dial()
	if err != nil {
		return Receipt{}, fmt.Errorf("dial %s:%d: %w", t.host, t.port, err)
	}
	defer sc.Close()

	if err := sc.Send(msg.From, msg.To, rawMessage(data)); err != nil {
		return Receipt{}, fmt.Errorf("send: %w", err)
	}

	t.log.Debugw("Relay accepted message", "messageID", id, "recipients", len(msg.To))
	return Receipt{
		MessageID: id,
		Transport: t.Name(),
		Host:      t.host,
		Accepted:  msg.Recipients(),
	}, nil
}

// render composes msg and applies the DKIM signature when a signer is set.
func render(msg Message, id string, signer Signer) ([]byte, error) {
	data, err := Compose(msg, id)
	if err != nil {
		return nil, err
	}
	if signer == nil {
		return data, nil
	}
	signed, err := signer.Sign(data, msg.From)
	if err != nil {
		return nil, err
	}
	return signed, nil
}

// rawMessage lets pre-rendered bytes pass through gomail.SendCloser.
type rawMessage []byte

func (r rawMessage) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r)
	return int64(n), err
}
