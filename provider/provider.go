package provider

import "context"

// Identity is the authenticated user as reported by the identity provider.
type Identity struct {
	UserID string
	Email  string
}

// Tokens is a credential pair issued by the provider. RefreshToken may be
// empty when the provider did not grant offline access.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// Grant is the result of validating a token pair with the provider.
type Grant struct {
	Identity Identity
	Tokens   Tokens
}

// Client is the identity-provider adapter consumed by the session manager and
// the background refresh scheduler. Implementations perform network I/O and
// honour context cancellation.
type Client interface {
	// ExchangeToken validates a token pair delivered by the redirect callback
	// and returns the identity it belongs to.
	ExchangeToken(ctx context.Context, accessToken, refreshToken string) (*Grant, error)

	// RefreshToken exchanges a refresh token for a fresh token pair.
	RefreshToken(ctx context.Context, refreshToken string) (*Tokens, error)

	// Revoke invalidates the given tokens on the provider side. Best effort:
	// callers sign out locally regardless of the outcome.
	Revoke(ctx context.Context, tokens Tokens) error
}
