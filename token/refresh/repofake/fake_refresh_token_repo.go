package refreshrepofake

import (
	"context"
	"sync"

	apperr "github.com/jrsteele09/go-token-trust/internal/errors"
	"github.com/jrsteele09/go-token-trust/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

type FakeRefreshTokenRepo struct {
	tokens map[string]*refresh.StoredRefreshToken // token hash to record
	nextID int64
	lock   sync.RWMutex
}

func NewFakeRefreshTokenRepo() *FakeRefreshTokenRepo {
	return &FakeRefreshTokenRepo{
		tokens: make(map[string]*refresh.StoredRefreshToken),
	}
}

func (tr *FakeRefreshTokenRepo) Create(_ context.Context, rt *refresh.StoredRefreshToken) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	if _, ok := tr.tokens[rt.TokenHash]; ok {
		return apperr.ErrConflict
	}
	tr.nextID++
	rt.ID = tr.nextID
	stored := *rt
	tr.tokens[rt.TokenHash] = &stored
	return nil
}

func (tr *FakeRefreshTokenRepo) GetByHash(_ context.Context, tokenHash string) (*refresh.StoredRefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	rt, ok := tr.tokens[tokenHash]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	copied := *rt
	return &copied, nil
}

func (tr *FakeRefreshTokenRepo) DeleteBySubject(_ context.Context, subjectID int64) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	for hash, rt := range tr.tokens {
		if rt.SubjectID == subjectID {
			delete(tr.tokens, hash)
		}
	}
	return nil
}

// Count returns the number of stored records.
func (tr *FakeRefreshTokenRepo) Count() int {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	return len(tr.tokens)
}

// All returns copies of every stored record.
func (tr *FakeRefreshTokenRepo) All() []refresh.StoredRefreshToken {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	records := make([]refresh.StoredRefreshToken, 0, len(tr.tokens))
	for _, rt := range tr.tokens {
		records = append(records, *rt)
	}
	return records
}
