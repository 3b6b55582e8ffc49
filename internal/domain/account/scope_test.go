package account

import "testing"

func TestScopeValid(t *testing.T) {
	if !VehicleScope("bus-042").Valid() {
		t.Fatal("vehicle scope must be valid")
	}
	if !FleetScope("acme", "ring-road").Valid() {
		t.Fatal("fleet scope must be valid")
	}
	if (Scope{}).Valid() {
		t.Fatal("empty scope must be invalid")
	}
	if (Scope{VehicleID: "bus-042", CompanyID: "acme", RouteID: "ring-road"}).Valid() {
		t.Fatal("mixed scope must be invalid")
	}
	if (Scope{CompanyID: "acme"}).Valid() {
		t.Fatal("fleet scope without route must be invalid")
	}
}

func TestScopeMatches(t *testing.T) {
	acct := &Account{UserID: "bus-042", Active: true, CompanyID: "acme", RouteID: "ring-road"}

	if !VehicleScope("bus-042").Matches(acct) {
		t.Fatal("vehicle scope must match its own account")
	}
	if VehicleScope("bus-043").Matches(acct) {
		t.Fatal("vehicle scope must not match another vehicle")
	}
	if !FleetScope("acme", "ring-road").Matches(acct) {
		t.Fatal("fleet scope must match an account on the same company and route")
	}
	if FleetScope("acme", "airport").Matches(acct) {
		t.Fatal("fleet scope must not match a different route")
	}
	if FleetScope("acme", "ring-road").Matches(nil) {
		t.Fatal("nil account never matches")
	}
}

func TestScopeString(t *testing.T) {
	if got := VehicleScope("bus-042").String(); got != "vehicle:bus-042" {
		t.Fatalf("unexpected scope string %q", got)
	}
	if got := FleetScope("acme", "ring-road").String(); got != "fleet:acme/ring-road" {
		t.Fatalf("unexpected scope string %q", got)
	}
}

func TestEnsureActive(t *testing.T) {
	active := &Account{UserID: "bus-042", Active: true}
	if err := active.EnsureActive(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	inactive := &Account{UserID: "bus-042"}
	if err := inactive.EnsureActive(); err != ErrInactive {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
}
