package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"buddyfeed/pkg/models"
)

const defaultLookupLimit = 8

// HTTPDirectory queries a remote profile service at GET {base}/users/{id}.
type HTTPDirectory struct {
	base   string
	client *http.Client
	// Limit bounds the number of lookups a bulk call keeps in flight.
	Limit int
}

func NewHTTPDirectory(base string, timeout time.Duration) *HTTPDirectory {
	return &HTTPDirectory{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
		Limit:  defaultLookupLimit,
	}
}

func (d *HTTPDirectory) Profile(ctx context.Context, id string) (models.PublicProfile, error) {
	if id == "" {
		return models.PublicProfile{}, ErrProfileNotFound
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.base+"/users/"+url.PathEscape(id), nil)
	if err != nil {
		return models.PublicProfile{}, unavailable(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return models.PublicProfile{}, unavailable(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.PublicProfile{}, ErrProfileNotFound
	case resp.StatusCode != http.StatusOK:
		return models.PublicProfile{}, unavailable(fmt.Errorf("unexpected status code %d", resp.StatusCode))
	}

	var p models.PublicProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return models.PublicProfile{}, unavailable(fmt.Errorf("failed to decode profile: %w", err))
	}
	p.ID = id

	return withDefaultPicture(p), nil
}

// Profiles looks the ids up concurrently. The first transport failure cancels the
// remaining lookups and is returned.
func (d *HTTPDirectory) Profiles(ctx context.Context, ids []string) (map[string]models.PublicProfile, error) {
	var mu sync.Mutex
	found := make(map[string]models.PublicProfile, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	limit := d.Limit
	if limit <= 0 {
		limit = defaultLookupLimit
	}
	g.SetLimit(limit)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			p, err := d.Profile(gctx, id)
			if errors.Is(err, ErrProfileNotFound) {
				return nil
			}
			if err != nil {
				return err
			}

			mu.Lock()
			found[id] = p
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return found, nil
}
