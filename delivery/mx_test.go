package delivery

import (
	"context"
	"errors"
	"net"
	"testing"
)

func stubLookup(t *testing.T, lookup func(ctx context.Context, domain string) ([]*net.MX, error)) {
	t.Helper()
	original := mxLookup
	mxLookup = lookup
	t.Cleanup(func() { mxLookup = original })
}

func TestGroupByDomain(t *testing.T) {
	order, groups, err := groupByDomain([]string{"a@example.com", "b@Example.org.", "c@example.com"})
	if err != nil {
		t.Fatalf("groupByDomain error: %v", err)
	}
	if len(order) != 2 || order[0] != "example.com" || order[1] != "example.org" {
		t.Fatalf("unexpected domain order %v", order)
	}
	if len(groups["example.com"]) != 2 {
		t.Fatalf("expected two recipients for example.com, got %v", groups["example.com"])
	}

	if _, _, err := groupByDomain([]string{"invalid"}); err == nil {
		t.Fatalf("expected error for invalid address")
	}
}

func TestResolveMX(t *testing.T) {
	stubLookup(t, func(ctx context.Context, domain string) ([]*net.MX, error) {
		return []*net.MX{
			{Host: "slow.example.com.", Pref: 20},
			{Host: "fast.example.com.", Pref: 5},
			{Host: "backup.example.com.", Pref: 20},
		}, nil
	})

	records, err := ResolveMX(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("ResolveMX error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Pref != 5 || records[0].Host != "fast.example.com" {
		t.Fatalf("expected primary record to be fast.example.com, got %+v", records[0])
	}
	if records[1].Pref != 20 || records[2].Pref != 20 {
		t.Fatalf("expected backups after primary, got %+v %+v", records[1], records[2])
	}
	for _, r := range records {
		if r.Host[len(r.Host)-1] == '.' {
			t.Fatalf("expected trailing dot trimmed, got %q", r.Host)
		}
	}
}

func TestResolveMXImplicit(t *testing.T) {
	for name, lookupErr := range map[string]error{
		"empty":     nil,
		"not found": &net.DNSError{Err: "no such host", Name: "example.net", IsNotFound: true},
	} {
		t.Run(name, func(t *testing.T) {
			stubLookup(t, func(ctx context.Context, domain string) ([]*net.MX, error) {
				return nil, lookupErr
			})
			records, err := ResolveMX(context.Background(), "example.net")
			if err != nil {
				t.Fatalf("ResolveMX error: %v", err)
			}
			if len(records) != 1 || records[0].Host != "example.net" {
				t.Fatalf("expected the domain itself as mail host, got %+v", records)
			}
		})
	}
}

func TestResolveMXNull(t *testing.T) {
	stubLookup(t, func(ctx context.Context, domain string) ([]*net.MX, error) {
		return []*net.MX{{Host: ".", Pref: 0}}, nil
	})
	if _, err := ResolveMX(context.Background(), "example.net"); !errors.Is(err, ErrNullMX) {
		t.Fatalf("expected ErrNullMX, got %v", err)
	}
}

func TestResolveMXLookupError(t *testing.T) {
	stubLookup(t, func(ctx context.Context, domain string) ([]*net.MX, error) {
		return nil, &net.DNSError{Err: "server misbehaving", Name: domain, IsTemporary: true}
	})
	if _, err := ResolveMX(context.Background(), "example.net"); err == nil {
		t.Fatalf("expected lookup error")
	}
}
