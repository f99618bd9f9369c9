package users

import "context"

// UserRepo persists issuer-side users. Lookups return errors.ErrNotFound when
// nothing matches and Create returns errors.ErrConflict on a duplicate email.
type UserRepo interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
}
