// Package identity resolves request credentials to user ids and user ids to public
// profiles. Nothing here exposes credentials or contact details.
package identity

import (
	"context"
	"fmt"

	"buddyfeed/pkg/models"
)

var (
	ErrUnauthenticated      = fmt.Errorf("not authorized")
	ErrMissingToken         = fmt.Errorf("%w: no token", ErrUnauthenticated)
	ErrInvalidToken         = fmt.Errorf("%w: token failed", ErrUnauthenticated)
	ErrUnknownUser          = fmt.Errorf("%w: user not found", ErrUnauthenticated)
	ErrProfileNotFound      = fmt.Errorf("profile not found")
	ErrDirectoryUnavailable = fmt.Errorf("user directory unavailable")
)

// Resolver maps a bearer credential to the caller's user id.
type Resolver interface {
	ResolveCaller(ctx context.Context, token string) (string, error)
}

// Directory looks up public profiles.
//
// Profiles returns the profiles it could resolve keyed by id; ids that are unknown or
// malformed are absent from the map rather than reported as errors. An error means the
// directory itself could not be reached.
type Directory interface {
	Profile(ctx context.Context, id string) (models.PublicProfile, error)
	Profiles(ctx context.Context, ids []string) (map[string]models.PublicProfile, error)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
}

func withDefaultPicture(p models.PublicProfile) models.PublicProfile {
	if p.ProfilePicture == "" {
		p.ProfilePicture = models.DefaultProfilePicture
	}
	return p
}
