package email

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

var (
	// ErrInvalidAddress indicates the address failed validation.
	ErrInvalidAddress = errors.New("invalid email address")
	// ErrDomainNotAllowed indicates the recipient domain is outside the allow list.
	ErrDomainNotAllowed = errors.New("recipient domain not allowed")
)

// Normalize validates a single bare address such as "user@example.com" and
// returns it lowercased. Display names and angle brackets are rejected so
// that header injection through a recipient field is impossible.
func Normalize(address string) (string, error) {
	if strings.ContainsAny(address, "\r\n") {
		return "", fmt.Errorf("%w: unexpected newline", ErrInvalidAddress)
	}

	addr := strings.TrimSpace(address)
	if addr == "" {
		return "", fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}

	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if parsed.Name != "" || parsed.Address != addr {
		return "", fmt.Errorf("%w: expected a bare address, got %q", ErrInvalidAddress, addr)
	}
	if _, err := Domain(parsed.Address); err != nil {
		return "", err
	}

	return strings.ToLower(parsed.Address), nil
}

// NormalizeAll validates every address, rejecting an empty list.
func NormalizeAll(addresses []string) ([]string, error) {
	if len(addresses) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrInvalidAddress)
	}
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		n, err := Normalize(a)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Domain returns the domain component of a validated email address.
func Domain(address string) (string, error) {
	at := strings.LastIndex(address, "@")
	if at == -1 || at == len(address)-1 {
		return "", fmt.Errorf("%w: missing domain", ErrInvalidAddress)
	}

	domain := address[at+1:]
	domain = strings.TrimSuffix(domain, ".")
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return "", fmt.Errorf("%w: empty domain", ErrInvalidAddress)
	}
	if strings.ContainsAny(domain, " \t") {
		return "", fmt.Errorf("%w: whitespace in domain", ErrInvalidAddress)
	}

	return strings.ToLower(domain), nil
}

// CheckDomain reports ErrDomainNotAllowed when allowed is non-empty and the
// address's domain is not in it.
func CheckDomain(address string, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	domain, err := Domain(address)
	if err != nil {
		return err
	}
	for _, d := range allowed {
		if domain == d {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrDomainNotAllowed, domain)
}
