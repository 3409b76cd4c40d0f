package service

import (
	"context"
	"errors"

	"github.com/sundog-labs/authgate/internal/gateway/domain"
	"github.com/sundog-labs/authgate/internal/gateway/store"
)

// ErrUnknownUser marks operations against a user id that no longer resolves.
var ErrUnknownUser = errors.New("unknown_user")

// UserService handles account-level operations after the provider round trip:
// terms acceptance and profile reads.
type UserService struct {
	Users  store.Users
	Tokens *TokenService
}

// AcceptTerms records the user's agreement and issues their first token pair.
// Login intentionally withholds tokens until this point; an account that
// never accepted the terms has never held a credential.
func (s *UserService) AcceptTerms(ctx context.Context, userID string) (domain.User, *domain.TokenPair, error) {
	err := s.Users.MarkTermsAccepted(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, nil, ErrUnknownUser
	}
	if err != nil {
		return domain.User{}, nil, err
	}

	u, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, nil, err
	}

	pair, err := s.Tokens.IssuePair(ctx, u.ID)
	if err != nil {
		return domain.User{}, nil, err
	}

	return u, pair, nil
}

// Profile returns the account for an authenticated subject.
func (s *UserService) Profile(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Users.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUnknownUser
	}
	return u, err
}
