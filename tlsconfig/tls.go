package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// ErrNoCertificates is returned when a CA bundle contains no usable certificate.
var ErrNoCertificates = errors.New("tls: no certificates found in CA bundle")

// Client returns the TLS configuration used when talking to an SMTP server.
// caFile, when set, is a PEM bundle added to the system roots.
func Client(serverName string, insecureSkipVerify bool, caFile string) (*tls.Config, error) {
	conf := &tls.Config{
		ServerName:         serverName,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: insecureSkipVerify, //nolint:gosec // opt-in for internal relays
	}
	if caFile == "" {
		return conf, nil
	}

	pemData, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("tls: read CA bundle: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pemData) {
		return nil, ErrNoCertificates
	}
	conf.RootCAs = pool
	return conf, nil
}
