package sessionstore

import (
	"context"
	"time"
)

// Session is the persisted credential set currently trusted by the client.
// The in-memory copy is owned by the session manager; stores only ever hold a
// serialized snapshot of it.
type Session struct {
	// ID correlates log lines for one login. Never derived from the tokens.
	ID string

	AccessToken  string
	RefreshToken string

	UserID string
	Email  string

	// StoredAt is the freshness timestamp. Reset on every successful refresh,
	// monotonically non-decreasing for the lifetime of a login.
	StoredAt time.Time
}

// Store persists the single current session and the single pending CSRF
// nonce. Both are single slots, not collections: a save fully overwrites any
// prior value.
//
// Read failures are fail-safe: a store that cannot read, decrypt or decode a
// slot reports it as absent rather than failing. Write failures are returned
// to the caller, who decides whether to continue memory-only.
type Store interface {
	SaveSession(ctx context.Context, session Session) error
	// LoadSession returns nil with no error when no usable session is stored.
	LoadSession(ctx context.Context) (*Session, error)
	ClearSession(ctx context.Context) error

	SavePendingState(ctx context.Context, nonce string) error
	// LoadPendingState returns "" with no error when no nonce is pending.
	LoadPendingState(ctx context.Context) (string, error)
	ClearPendingState(ctx context.Context) error
}
