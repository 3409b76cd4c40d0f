package domain

import "time"

// User is an account linked to exactly one external identity. The pair
// (Provider, ProviderSub) is unique; the identity resolution lock protects
// that invariant during concurrent first-time logins.
type User struct {
	ID          string
	Email       string
	Provider    string
	ProviderSub string
	TermsAgreed bool
	AgreedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
