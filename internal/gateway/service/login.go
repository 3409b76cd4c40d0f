package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sundog-labs/authgate/internal/gateway/domain"
	"github.com/sundog-labs/authgate/internal/gateway/kv"
	"github.com/sundog-labs/authgate/internal/gateway/provider"
	"github.com/sundog-labs/authgate/internal/gateway/store"
	"github.com/sundog-labs/authgate/pkg/idx"
	"github.com/sundog-labs/authgate/pkg/slogx"
)

var (
	// ErrLoginFailed covers every way the provider round trip can go wrong:
	// bad state, rejected code, unverifiable id token. The caller redirects
	// back to the login page with a generic failure.
	ErrLoginFailed = errors.New("login_failed")

	// ErrLoginInProgress means another request is creating the account for
	// this external identity right now. A retry moments later will find it.
	ErrLoginInProgress = errors.New("login_in_progress")
)

// DefaultIdentityLockTTL bounds how long a crashed account-creation attempt
// can hold the identity lock.
const DefaultIdentityLockTTL = 30 * time.Second

// LoginService drives the full login flow: redirecting to the identity
// provider, handling the callback, resolving or creating the local account,
// and issuing the token pair.
type LoginService struct {
	Provider provider.Provider
	Guard    Guard
	Users    store.Users
	Locks    *kv.Lock
	Tokens   *TokenService
	LockTTL  time.Duration
}

// CallbackResult is the outcome of a provider callback. When the user has not
// yet accepted the terms of service, Pair is nil and TermsPending is set; the
// handler redirects to the terms page instead of issuing tokens.
type CallbackResult struct {
	User         domain.User
	Pair         *domain.TokenPair
	TermsPending bool
}

// Begin opens a login attempt and returns the provider consent URL to
// redirect the browser to.
func (s *LoginService) Begin(ctx context.Context) (string, error) {
	state, nonce, err := s.Guard.Begin(ctx)
	if err != nil {
		return "", err
	}
	return s.Provider.AuthURL(state, nonce), nil
}

// HandleCallback finishes a login attempt: it redeems the state, exchanges
// the code, verifies the id token against the nonce, and resolves the
// external identity to a local account.
func (s *LoginService) HandleCallback(ctx context.Context, state, code string) (*CallbackResult, error) {
	l := slogx.FromContext(ctx)

	nonce, err := s.Guard.Complete(ctx, state)
	if errors.Is(err, ErrInvalidState) {
		l.Info("login callback with invalid state")
		return nil, ErrLoginFailed
	}
	if err != nil {
		return nil, err
	}

	rawIDToken, err := s.Provider.Exchange(ctx, code)
	if err != nil {
		l.Info("code exchange failed", slog.Any("error", err))
		return nil, ErrLoginFailed
	}

	ident, err := s.Provider.Identity(ctx, rawIDToken, nonce)
	if err != nil {
		l.Info("id token verification failed", slog.Any("error", err))
		return nil, ErrLoginFailed
	}

	u, err := s.resolveUser(ctx, ident)
	if err != nil {
		return nil, err
	}

	if !u.TermsAgreed {
		return &CallbackResult{User: u, TermsPending: true}, nil
	}

	if err := s.Users.TouchLastSeen(ctx, u.ID); err != nil {
		l.Warn("failed to touch last seen", slog.Any("error", err), slog.String("user_id", u.ID))
	}

	pair, err := s.Tokens.IssuePair(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	return &CallbackResult{User: u, Pair: pair}, nil
}

// resolveUser maps an external identity to a local user, creating the account
// on first login. Creation is serialized per identity with the distributed
// lock so two concurrent first logins cannot race two accounts into
// existence; the unique index on (provider, provider_sub) is the backstop.
func (s *LoginService) resolveUser(ctx context.Context, ident provider.Identity) (domain.User, error) {
	l := slogx.FromContext(ctx)
	name := s.Provider.Name()

	u, err := s.Users.GetUserByProviderSubject(ctx, name, ident.Subject)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, err
	}

	ok, err := s.Locks.TryAcquire(ctx, name, ident.Subject, s.lockTTL())
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		l.Info("identity lock held, rejecting concurrent first login",
			slog.String("provider", name), slog.String("sub", ident.Subject))
		return domain.User{}, ErrLoginInProgress
	}
	defer func() {
		if err := s.Locks.Release(ctx, name, ident.Subject); err != nil {
			l.Warn("failed to release identity lock", slog.Any("error", err))
		}
	}()

	// A previous holder may have finished between our miss and the acquire.
	u, err = s.Users.GetUserByProviderSubject(ctx, name, ident.Subject)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, err
	}

	now := time.Now().UTC()
	u = domain.User{
		ID:          idx.New().String(),
		Email:       ident.Email,
		Provider:    name,
		ProviderSub: ident.Subject,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.Users.CreateUser(ctx, u)
	if errors.Is(err, store.ErrAlreadyExists) {
		// Lost the race to a holder whose lock had already expired.
		return s.Users.GetUserByProviderSubject(ctx, name, ident.Subject)
	}
	if err != nil {
		return domain.User{}, err
	}

	l.Info("created account for first-time login",
		slog.String("user_id", u.ID), slog.String("provider", name))
	return u, nil
}

func (s *LoginService) lockTTL() time.Duration {
	if s.LockTTL > 0 {
		return s.LockTTL
	}
	return DefaultIdentityLockTTL
}
