package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"buddyfeed/pkg/models"
)

const testSecret = "test-secret"

func TestJWTVerifier_ResolveCaller(t *testing.T) {
	v := NewJWTVerifier(testSecret)

	valid, err := v.Issue("alice")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	expiredVerifier := NewJWTVerifier(testSecret)
	expiredVerifier.TTL = -time.Hour
	expired, err := expiredVerifier.Issue("alice")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	foreign, err := NewJWTVerifier("other-secret").Issue("alice")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims{UserID: "alice"}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("unexpected error signing token: %v", err)
	}

	noID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("unexpected error signing token: %v", err)
	}

	tests := []struct {
		name    string
		token   string
		want    string
		wantErr error
	}{
		{name: "valid", token: valid, want: "alice"},
		{name: "empty", token: "", wantErr: ErrMissingToken},
		{name: "garbage", token: "not.a.token", wantErr: ErrInvalidToken},
		{name: "expired", token: expired, wantErr: ErrInvalidToken},
		{name: "wrong secret", token: foreign, wantErr: ErrInvalidToken},
		{name: "unexpected algorithm", token: hs512, wantErr: ErrInvalidToken},
		{name: "missing id claim", token: noID, wantErr: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.ResolveCaller(context.Background(), tt.token)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want error %v, got %v", tt.wantErr, err)
				}
				if !errors.Is(err, ErrUnauthenticated) {
					t.Errorf("want error classified as %v, got %v", ErrUnauthenticated, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("want caller %q, got %q", tt.want, got)
			}
		})
	}
}

func TestJWTVerifier_ResolveCallerKnownUsers(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	v.Users = NewMemDirectory(models.PublicProfile{ID: "alice", FirstName: "Alice", LastName: "Liddell"})

	token, err := v.Issue("alice")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}
	if got, err := v.ResolveCaller(context.Background(), token); err != nil || got != "alice" {
		t.Errorf("want caller %q, got %q (err %v)", "alice", got, err)
	}

	token, err = v.Issue("ghost")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}
	if _, err := v.ResolveCaller(context.Background(), token); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("want error %v, got %v", ErrUnknownUser, err)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := BearerToken(tt.header); got != tt.want {
			t.Errorf("BearerToken(%q): want %q, got %q", tt.header, tt.want, got)
		}
	}
}
