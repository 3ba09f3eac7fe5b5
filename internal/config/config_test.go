package config

import "testing"

func TestParseRoutes(t *testing.T) {
	routes, err := parseRoutes("customer=/customer=http://localhost:5001,shopping=/shopping/=http://localhost:5002/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}
	if routes[0].Name != "customer" || routes[0].Prefix != "/customer" || routes[0].Target != "http://localhost:5001" {
		t.Fatalf("unexpected first binding: %+v", routes[0])
	}
	// Trailing slashes are normalized away.
	if routes[1].Prefix != "/shopping" || routes[1].Target != "http://localhost:5002" {
		t.Fatalf("unexpected second binding: %+v", routes[1])
	}
}

func TestParseRoutesRejectsMalformedEntries(t *testing.T) {
	for _, raw := range []string{
		"customer=http://localhost:5001",
		"customer=customer=http://localhost:5001",
	} {
		if _, err := parseRoutes(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestParseRoutesEmpty(t *testing.T) {
	routes, err := parseRoutes("  ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(routes) != 0 {
		t.Fatalf("expected no routes, got %d", len(routes))
	}
}
