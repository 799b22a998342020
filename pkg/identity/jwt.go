package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultTokenTTL = 30 * 24 * time.Hour

type claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// JWTVerifier resolves HS256 tokens carrying the user id in the "id" claim.
// When Users is set, the id must also belong to a known profile.
type JWTVerifier struct {
	secret []byte
	TTL    time.Duration
	Users  Directory
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), TTL: DefaultTokenTTL}
}

// Issue mints a token for userID valid for the verifier's TTL.
func (v *JWTVerifier) Issue(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.TTL)),
		},
	})

	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (v *JWTVerifier) ResolveCaller(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}

	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if c.UserID == "" {
		return "", fmt.Errorf("%w: missing id claim", ErrInvalidToken)
	}

	if v.Users != nil {
		if _, err := v.Users.Profile(ctx, c.UserID); err != nil {
			if errors.Is(err, ErrProfileNotFound) {
				return "", ErrUnknownUser
			}
			return "", err
		}
	}

	return c.UserID, nil
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
