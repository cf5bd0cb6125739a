package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smarteb/smarteb/internal/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(storage.NewMemory())
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	u, err := svc.Register(ctx, "clerk", "s3cret", RoleOperator, "")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if u.Role != RoleOperator {
		t.Errorf("role = %q", u.Role)
	}
	if u.PasswordHash == "s3cret" {
		t.Fatalf("password stored in clear")
	}

	if _, err := svc.Register(ctx, "clerk", "other", RoleOperator, ""); err == nil {
		t.Errorf("duplicate username accepted")
	}

	got, err := svc.Authenticate(ctx, "clerk", "s3cret")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("authenticated wrong user")
	}

	if _, err := svc.Authenticate(ctx, "clerk", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "ghost", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestRegister_BindsConsumerNumber(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	u, err := svc.Register(ctx, "cn1001", "pw", RoleConsumer, "CN-1001")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if u.ConsumerNumber != "CN-1001" {
		t.Errorf("consumerNumber = %q", u.ConsumerNumber)
	}
}

func TestTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	u, err := svc.Register(ctx, "clerk", "pw", RoleOperator, "")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tok, raw, err := svc.CreateToken(ctx, u.ID, "cli", u.Role, nil)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	if raw == "" || tok.TokenHash == raw {
		t.Fatalf("raw token must not be stored as-is")
	}

	got, err := svc.ValidateToken(ctx, raw)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if got.ID != tok.ID {
		t.Errorf("validated wrong token")
	}

	if _, err := svc.ValidateToken(ctx, "bogus"); err == nil {
		t.Errorf("bogus token accepted")
	}

	expired := time.Now().Add(-time.Hour)
	_, rawExpired, err := svc.CreateToken(ctx, u.ID, "old", u.Role, &expired)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	if _, err := svc.ValidateToken(ctx, rawExpired); err == nil {
		t.Errorf("expired token accepted")
	}
}

func TestEnforce_Roles(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	admin, _ := svc.Register(ctx, "root", "pw", RoleAdmin, "")
	operator, _ := svc.Register(ctx, "clerk", "pw", RoleOperator, "")
	consumer, _ := svc.Register(ctx, "cn1001", "pw", RoleConsumer, "CN-1001")

	cases := []struct {
		sub, obj, act string
		want          bool
	}{
		{admin.ID, "users", "write", true},
		{operator.ID, "consumers", "write", true},
		{operator.ID, "users", "write", false},
		{consumer.ID, "billing", "read", true},
		{consumer.ID, "readings", "write", true},
		{consumer.ID, "consumers", "write", false},
	}
	for _, tc := range cases {
		got, err := svc.Enforce(tc.sub, tc.obj, tc.act)
		if err != nil {
			t.Fatalf("Enforce(%s, %s, %s) failed: %v", tc.sub, tc.obj, tc.act, err)
		}
		if got != tc.want {
			t.Errorf("Enforce(%s, %s, %s) = %v, want %v", tc.sub, tc.obj, tc.act, got, tc.want)
		}
	}
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	if err := svc.Bootstrap(ctx, "changeme"); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	u, err := svc.Authenticate(ctx, "admin", "changeme")
	if err != nil {
		t.Fatalf("bootstrap admin cannot log in: %v", err)
	}
	if u.Role != RoleAdmin {
		t.Errorf("role = %q", u.Role)
	}

	// Second bootstrap is a no-op.
	if err := svc.Bootstrap(ctx, "other"); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	users, _ := store.ListUsers(ctx)
	if len(users) != 1 {
		t.Errorf("expected a single user, got %d", len(users))
	}
}

func TestParseExpirationDuration(t *testing.T) {
	if got, err := ParseExpirationDuration("never"); err != nil || got != nil {
		t.Errorf("never: got %v, %v", got, err)
	}
	if got, err := ParseExpirationDuration(""); err != nil || got != nil {
		t.Errorf("empty: got %v, %v", got, err)
	}

	before := time.Now()
	got, err := ParseExpirationDuration("30d")
	if err != nil {
		t.Fatalf("30d failed: %v", err)
	}
	want := before.Add(30 * 24 * time.Hour)
	if got.Before(want) || got.After(want.Add(time.Minute)) {
		t.Errorf("30d: got %v, want about %v", got, want)
	}

	if _, err := ParseExpirationDuration("banana"); err == nil {
		t.Errorf("expected error for garbage input")
	}
	if _, err := ParseExpirationDuration("01/02/2020"); err == nil {
		t.Errorf("expected error for a past date")
	}
}
