package store

import (
	"context"
	"errors"

	"github.com/sundog-labs/authgate/internal/gateway/domain"
)

var (
	ErrNotFound = errors.New("store: not found")
	// ErrAlreadyExists surfaces the unique (provider, provider_sub) index.
	// Callers losing an identity-creation race see this and re-query.
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface for user identities. Concrete
// drivers (sqlite for now) implement it.
type Store interface {
	Users() Users

	ApplyMigrations() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByProviderSubject resolves an external identity to a local user.
	GetUserByProviderSubject(ctx context.Context, provider, sub string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	// Returns ErrAlreadyExists when the (provider, provider_sub) pair is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// MarkTermsAccepted sets term_agreed and agreed_at, bumping updated_at.
	MarkTermsAccepted(ctx context.Context, userID string) error

	// TouchLastSeen bumps updated_at on a successful login.
	TouchLastSeen(ctx context.Context, userID string) error
}
