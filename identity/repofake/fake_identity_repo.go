package identityrepofake

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-token-trust/identity"
	apperr "github.com/jrsteele09/go-token-trust/internal/errors"
)

var _ identity.Repo = (*FakeIdentityRepo)(nil)

// FakeIdentityRepo is an in-memory identity store with a unique email
// constraint. The hooks let tests interleave concurrent callers.
type FakeIdentityRepo struct {
	identities map[string]*identity.Identity // email to record
	nextID     int64
	inserts    int
	updates    int
	lock       sync.RWMutex

	// BeforeFind runs at the start of every FindByEmail.
	BeforeFind func(email string)
	// BeforeInsert runs at the start of every Insert, outside the lock.
	BeforeInsert func(email string)
	// InsertErr, when set, is returned by Insert without storing anything.
	InsertErr error
}

func NewFakeIdentityRepo() *FakeIdentityRepo {
	return &FakeIdentityRepo{
		identities: make(map[string]*identity.Identity),
	}
}

func (ir *FakeIdentityRepo) FindByEmail(_ context.Context, email string) (*identity.Identity, error) {
	if ir.BeforeFind != nil {
		ir.BeforeFind(email)
	}
	ir.lock.RLock()
	defer ir.lock.RUnlock()

	found, ok := ir.identities[email]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	copied := *found
	return &copied, nil
}

func (ir *FakeIdentityRepo) Insert(_ context.Context, id *identity.Identity) error {
	if ir.BeforeInsert != nil {
		ir.BeforeInsert(id.Email)
	}
	if ir.InsertErr != nil {
		return ir.InsertErr
	}

	ir.lock.Lock()
	defer ir.lock.Unlock()

	if _, ok := ir.identities[id.Email]; ok {
		return apperr.ErrConflict
	}
	ir.nextID++
	id.ID = ir.nextID
	now := time.Now().UTC()
	id.CreatedAt, id.UpdatedAt = now, now

	stored := *id
	ir.identities[id.Email] = &stored
	ir.inserts++
	return nil
}

func (ir *FakeIdentityRepo) Update(_ context.Context, id *identity.Identity) error {
	ir.lock.Lock()
	defer ir.lock.Unlock()

	if _, ok := ir.identities[id.Email]; !ok {
		return apperr.ErrNotFound
	}
	id.UpdatedAt = time.Now().UTC()
	stored := *id
	ir.identities[id.Email] = &stored
	ir.updates++
	return nil
}

// Put stores a record directly, bypassing the write counters.
func (ir *FakeIdentityRepo) Put(id identity.Identity) {
	ir.lock.Lock()
	defer ir.lock.Unlock()
	ir.nextID++
	id.ID = ir.nextID
	ir.identities[id.Email] = &id
}

// Count returns the number of stored identities.
func (ir *FakeIdentityRepo) Count() int {
	ir.lock.RLock()
	defer ir.lock.RUnlock()
	return len(ir.identities)
}

// Writes returns the number of successful inserts and updates.
func (ir *FakeIdentityRepo) Writes() (inserts, updates int) {
	ir.lock.RLock()
	defer ir.lock.RUnlock()
	return ir.inserts, ir.updates
}
