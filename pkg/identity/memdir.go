package identity

import (
	"context"
	"sync"

	"github.com/gofrs/uuid"

	"buddyfeed/pkg/models"
)

type memAccount struct {
	id    string
	email string
	hash  string
}

// MemDirectory is an in-memory Directory and Accounts store.
type MemDirectory struct {
	mu       sync.RWMutex
	profiles map[string]models.PublicProfile
	accounts map[string]memAccount // by email
	emails   map[string]string     // id -> email
}

func NewMemDirectory(profiles ...models.PublicProfile) *MemDirectory {
	d := MemDirectory{
		profiles: make(map[string]models.PublicProfile),
		accounts: make(map[string]memAccount),
		emails:   make(map[string]string),
	}
	for _, p := range profiles {
		d.Put(p)
	}
	return &d
}

func (d *MemDirectory) Put(p models.PublicProfile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.ID] = withDefaultPicture(p)
}

func (d *MemDirectory) Remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.profiles, id)
	if email, ok := d.emails[id]; ok {
		delete(d.accounts, email)
		delete(d.emails, id)
	}
}

func (d *MemDirectory) Profile(ctx context.Context, id string) (models.PublicProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.profiles[id]
	if !ok {
		return models.PublicProfile{}, ErrProfileNotFound
	}
	return p, nil
}

func (d *MemDirectory) Profiles(ctx context.Context, ids []string) (map[string]models.PublicProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	found := make(map[string]models.PublicProfile, len(ids))
	for _, id := range ids {
		if p, ok := d.profiles[id]; ok {
			found[id] = p
		}
	}
	return found, nil
}

func (d *MemDirectory) Register(ctx context.Context, reg Registration) (Account, error) {
	if err := reg.normalize(); err != nil {
		return Account{}, err
	}
	hash, err := hashPassword(reg.Password)
	if err != nil {
		return Account{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return Account{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.accounts[reg.Email]; ok {
		return Account{}, ErrAccountExists
	}

	p := withDefaultPicture(models.PublicProfile{
		ID:        id.String(),
		FirstName: reg.FirstName,
		LastName:  reg.LastName,
	})
	d.profiles[p.ID] = p
	d.accounts[reg.Email] = memAccount{id: p.ID, email: reg.Email, hash: hash}
	d.emails[p.ID] = reg.Email

	return Account{PublicProfile: p, Email: reg.Email}, nil
}

func (d *MemDirectory) Authenticate(ctx context.Context, email, password string) (Account, error) {
	d.mu.RLock()
	acc, ok := d.accounts[normalizeEmail(email)]
	p := d.profiles[acc.id]
	d.mu.RUnlock()

	if !ok {
		return Account{}, ErrBadCredentials
	}
	if err := checkPassword(acc.hash, password); err != nil {
		return Account{}, err
	}
	return Account{PublicProfile: p, Email: acc.email}, nil
}

func (d *MemDirectory) Account(ctx context.Context, id string) (Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.profiles[id]
	if !ok {
		return Account{}, ErrProfileNotFound
	}
	return Account{PublicProfile: p, Email: d.emails[id]}, nil
}
