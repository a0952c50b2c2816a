package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestValidateToken(t *testing.T) {
	cfg := newTestJWTConfig()

	valid, err := GenerateToken(cfg, 7, "alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	expiredCfg := *cfg
	expiredCfg.TTL = -time.Minute
	expired, err := GenerateToken(&expiredCfg, 7, "alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	otherAudCfg := *cfg
	otherAudCfg.Audience = "someone-else"
	wrongAud, err := GenerateToken(&otherAudCfg, 7, "alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	noUser, err := GenerateToken(cfg, 0, "ghost@example.com", "Ghost")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": 7}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid", valid, false},
		{"expired", expired, true},
		{"wrong audience", wrongAud, true},
		{"no user", noUser, true},
		{"unsigned", unsigned, true},
		{"garbage", "not.a.token", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ValidateToken(cfg, tt.token)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got claims %+v", claims)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if claims.UserID != 7 || claims.Email != "alice@example.com" {
				t.Fatalf("unexpected claims: %+v", claims)
			}
		})
	}
}
