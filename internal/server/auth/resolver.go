package auth

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/ecomarket/internal/common"
)

// IdentityStore looks up account records by one of their unique fields.
// Both methods return common.ErrorNotFound when nothing matches.
type IdentityStore interface {
	FindByEmail(ctx context.Context, email string) (Identity, error)
	FindByUsername(ctx context.Context, username string) (Identity, error)
}

// Resolver turns a username-or-email into a Principal. It never writes to
// the store.
type Resolver struct {
	store IdentityStore
}

func NewResolver(store IdentityStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve tries identifier as an email first and as a username second.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (*Principal, error) {
	id, err := r.store.FindByEmail(ctx, identifier)
	if errors.Is(err, common.ErrorNotFound) {
		id, err = r.store.FindByUsername(ctx, identifier)
	}
	if err != nil {
		return nil, err
	}

	return NewPrincipal(id, identifier)
}
