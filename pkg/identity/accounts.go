package identity

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"buddyfeed/pkg/models"
)

var (
	ErrInvalidAccount = fmt.Errorf("invalid account data")
	ErrAccountExists  = fmt.Errorf("user already exists")
	ErrBadCredentials = fmt.Errorf("%w: invalid email or password", ErrUnauthenticated)
)

var emailPattern = regexp.MustCompile(`.+@.+\..+`)

// Account is a user as seen by the user themself.
type Account struct {
	models.PublicProfile
	Email string `json:"email"`
}

type Registration struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Accounts creates users and checks their credentials. Account returns ErrProfileNotFound
// for unknown ids.
type Accounts interface {
	Register(ctx context.Context, reg Registration) (Account, error)
	Authenticate(ctx context.Context, email, password string) (Account, error)
	Account(ctx context.Context, id string) (Account, error)
}

// Issuer mints bearer tokens for authenticated users.
type Issuer interface {
	Issue(userID string) (string, error)
}

func (reg *Registration) normalize() error {
	reg.FirstName = strings.TrimSpace(reg.FirstName)
	reg.LastName = strings.TrimSpace(reg.LastName)
	reg.Email = normalizeEmail(reg.Email)

	if reg.FirstName == "" || reg.LastName == "" || reg.Email == "" || reg.Password == "" {
		return fmt.Errorf("%w: please add all fields", ErrInvalidAccount)
	}
	if !emailPattern.MatchString(reg.Email) {
		return fmt.Errorf("%w: please fill a valid email address", ErrInvalidAccount)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAccount, err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrBadCredentials
	}
	return nil
}
