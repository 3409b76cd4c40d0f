package domain

import "time"

// TokenPair is what a successful login issues: a short-lived access token and
// a longer-lived refresh token, both signed JWTs backed by allow-list entries.
type TokenPair struct {
	AccessToken      string        `json:"access_token"`
	RefreshToken     string        `json:"refresh_token"`
	AccessExpiresIn  time.Duration `json:"access_expires_in"`
	RefreshExpiresIn time.Duration `json:"refresh_expires_in"`
}
