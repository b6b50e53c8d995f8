package delivery

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"slices"
	"strings"

	"mailnotify/internal/email"
)

// ErrNullMX is returned for domains that publish a null MX record (RFC 7505).
var ErrNullMX = errors.New("domain does not accept mail")

var mxLookup = func(ctx context.Context, domain string) ([]*net.MX, error) {
	return net.DefaultResolver.LookupMX(ctx, domain)
}

// ResolveMX returns the mail hosts for domain in delivery order: ascending
// preference, with hosts of equal preference in random order. A domain
// without MX records is its own mail host.
func ResolveMX(ctx context.Context, domain string) ([]*net.MX, error) {
	records, err := mxLookup(ctx, domain)
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr) && dnsErr.IsNotFound:
		records = nil
	case err != nil:
		return nil, err
	}
	if len(records) == 0 {
		return []*net.MX{{Host: domain}}, nil
	}

	hosts := make([]*net.MX, 0, len(records))
	for _, r := range records {
		host := strings.TrimSuffix(r.Host, ".")
		if host == "" {
			continue
		}
		hosts = append(hosts, &net.MX{Host: host, Pref: r.Pref})
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("%s: %w", domain, ErrNullMX)
	}

	rand.Shuffle(len(hosts), func(i, j int) { hosts[i], hosts[j] = hosts[j], hosts[i] })
	slices.SortStableFunc(hosts, func(a, b *net.MX) int { return cmp.Compare(a.Pref, b.Pref) })
	return hosts, nil
}

// groupByDomain splits recipients by their domain, keeping first-seen order.
func groupByDomain(recipients []string) ([]string, map[string][]string, error) {
	var order []string
	groups := make(map[string][]string)
	for _, rcpt := range recipients {
		domain, err := email.Domain(rcpt)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid email format: %w", err)
		}
		if _, ok := groups[domain]; !ok {
			order = append(order, domain)
		}
		groups[domain] = append(groups[domain], rcpt)
	}
	return order, groups, nil
}
