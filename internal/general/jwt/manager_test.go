package jwt

import (
	"errors"
	"testing"
	"time"

	"fleet-track/internal/domain/user"
)

func TestIssueAndParseRoundtrip(t *testing.T) {
	mgr := NewManager("test-secret", time.Hour)

	token, issued, err := mgr.IssueUserToken("bus-042", user.RoleVehicle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if issued.Subject != "bus-042" || issued.Role != user.RoleVehicle {
		t.Fatalf("unexpected issued claims: %+v", issued)
	}

	_, parsed, err := mgr.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Subject != "bus-042" || parsed.Role != user.RoleVehicle {
		t.Fatalf("unexpected parsed claims: %+v", parsed)
	}
}

func TestIssueRejectsInvalidRole(t *testing.T) {
	mgr := NewManager("test-secret", time.Hour)
	if _, _, err := mgr.IssueUserToken("bus-042", user.Role("DRIVER")); err == nil {
		t.Fatal("expected an error for an unknown role")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	issuer := NewManager("secret-a", time.Hour)
	verifier := NewManager("secret-b", time.Hour)

	token, _, err := issuer.IssueUserToken("bus-042", user.RoleVehicle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, err := verifier.ParseAndValidate(token); err == nil {
		t.Fatal("expected a signature verification error")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	mgr := NewManager("test-secret", -time.Minute)

	token, _, err := mgr.IssueUserToken("bus-042", user.RoleVehicle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, err := mgr.ParseAndValidate(token); err == nil {
		t.Fatal("expected an expiry error")
	}
}

func TestRoleAllowed(t *testing.T) {
	claims := NewUserClaims("dispatcher-1", user.RoleDispatcher, time.Hour)

	if err := RoleAllowed(claims, user.RoleDispatcher, user.RoleAdmin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := RoleAllowed(claims, user.RoleVehicle); !errors.Is(err, ErrRoleForbidden) {
		t.Fatalf("expected ErrRoleForbidden, got %v", err)
	}
}

func TestValidateWSAuth(t *testing.T) {
	mgr := NewManager("test-secret", time.Hour)
	token, _, err := mgr.IssueUserToken("bus-042", user.RoleVehicle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	frame := []byte(`{"type":"auth","token":"Bearer ` + token + `"}`)
	res, err := ValidateWSAuth(frame, mgr, user.RoleVehicle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Claims.Subject != "bus-042" {
		t.Fatalf("unexpected subject %q", res.Claims.Subject)
	}

	// wrong role is rejected
	if _, err := ValidateWSAuth(frame, mgr, user.RoleAdmin); !errors.Is(err, ErrRoleForbidden) {
		t.Fatalf("expected ErrRoleForbidden, got %v", err)
	}

	// token without the Bearer wrap is rejected
	bad := []byte(`{"type":"auth","token":"` + token + `"}`)
	if _, err := ValidateWSAuth(bad, mgr, user.RoleVehicle); !errors.Is(err, ErrBadTokenWrap) {
		t.Fatalf("expected ErrBadTokenWrap, got %v", err)
	}

	// non-auth frames are rejected
	notAuth := []byte(`{"type":"hello"}`)
	if _, err := ValidateWSAuth(notAuth, mgr, user.RoleVehicle); !errors.Is(err, ErrBadAuthMsg) {
		t.Fatalf("expected ErrBadAuthMsg, got %v", err)
	}
}
