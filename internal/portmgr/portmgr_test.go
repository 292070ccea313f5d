package portmgr

import (
	"testing"

	"golang.org/x/time/rate"
)

func TestReserveAndRelease(t *testing.T) {
	m := NewInMemory(rate.Inf, 10)

	p, err := m.Reserve("c_AAA", 8080)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if p.Port() != "8080" || p.Proto() != "tcp" {
		t.Fatalf("port = %v", p)
	}

	if _, err := m.Reserve("c_BBB", 8080); err == nil {
		t.Fatalf("expected conflicting reservation to fail")
	}

	if err := m.Release("c_AAA", p); err != nil {
		t.Fatalf("Release: %v", err)
	}

	if _, err := m.Reserve("c_BBB", 8080); err != nil {
		t.Fatalf("expected reservation after release to succeed: %v", err)
	}
}

func TestReserveRateLimited(t *testing.T) {
	m := NewInMemory(rate.Limit(0), 1)

	if _, err := m.Reserve("c_AAA", 9000); err != nil {
		t.Fatalf("first reservation: %v", err)
	}
	if _, err := m.Reserve("c_AAA", 9001); err == nil {
		t.Fatalf("expected second reservation to be rate-limited")
	}
}

func TestReleaseWrongOwner(t *testing.T) {
	m := NewInMemory(rate.Inf, 10)
	p, _ := m.Reserve("c_AAA", 7000)
	if err := m.Release("c_BBB", p); err == nil {
		t.Fatalf("expected release by non-owner to fail")
	}
}
