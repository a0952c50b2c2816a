package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/pairchat/internal/store/sqlite"
)

func newTestJWTConfig() *JWTConfig {
	return &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
}

func newTestAuthService(t *testing.T) *Service {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return NewService(st, newTestJWTConfig())
}

func TestSignup_RejectsInvalidInput(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  SignupRequest
		want error
	}{
		{"bad email", SignupRequest{Email: "not-an-email", FullName: "Alice", Password: "password123"}, ErrInvalidEmail},
		{"display name email", SignupRequest{Email: "Alice <a@example.com>", FullName: "Alice", Password: "password123"}, ErrInvalidEmail},
		{"blank name", SignupRequest{Email: "a@example.com", FullName: "   ", Password: "password123"}, ErrInvalidName},
		{"short password", SignupRequest{Email: "a@example.com", FullName: "Alice", Password: "12345"}, ErrInvalidPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Signup(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSignup_NormalizesEmailAndRejectsDuplicates(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	session, err := svc.Signup(ctx, SignupRequest{
		Email:    " Alice@Example.com ",
		FullName: " Alice ",
		Password: "password123",
		Bio:      "hello there",
	})
	if err != nil {
		t.Fatalf("expected signup success, got %v", err)
	}
	if session.Token == "" {
		t.Fatalf("expected non-empty token")
	}
	if session.User.Email != "alice@example.com" || session.User.FullName != "Alice" {
		t.Fatalf("unexpected user: %+v", session.User)
	}

	_, err = svc.Signup(ctx, SignupRequest{Email: "alice@example.com", FullName: "Other", Password: "password123"})
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	signup, err := svc.Signup(ctx, SignupRequest{Email: "bob@example.com", FullName: "Bob", Password: "password123"})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	if _, err := svc.Login(ctx, "bob@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	session, err := svc.Login(ctx, "BOB@example.com", "password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	claims, err := svc.ValidateToken(session.Token)
	if err != nil {
		t.Fatalf("token validation failed: %v", err)
	}
	if claims.UserID != signup.User.ID || claims.FullName != "Bob" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	user, err := svc.CurrentUser(ctx, claims.UserID)
	if err != nil {
		t.Fatalf("CurrentUser failed: %v", err)
	}
	if user.Email != "bob@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}
}
