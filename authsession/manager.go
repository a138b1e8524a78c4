// Package authsession owns the client's authentication session lifecycle:
// the in-memory session established from redirect-delivered tokens, its
// persisted copy, and the background scheduler that keeps the access token
// fresh while the user stays signed in.
package authsession

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/rulehub/rulehub-client/authsession/sessionstore"
	apperrors "github.com/rulehub/rulehub-client/internal/errors"
	"github.com/rulehub/rulehub-client/provider"
)

// Snapshot is the read-only projection of the current session handed to
// collaborators (catalog cache, UI). It is recomputed on access, never
// mutated independently.
type Snapshot struct {
	IsAuthenticated bool
	CurrentUser     *provider.Identity
}

// Deps holds the collaborators a Manager needs.
type Deps struct {
	Store    sessionstore.Store
	Provider provider.Client
}

// Option modifies a Manager during construction.
type Option func(*Manager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// WithRefreshPolicy overrides the background refresh policy. The interval
// must not exceed the staleness threshold, so a stale session is caught with
// margin for at least one missed tick before the token actually expires.
func WithRefreshPolicy(interval, stalenessThreshold, tokenHardLifetime time.Duration) Option {
	return func(m *Manager) {
		m.refreshInterval = interval
		m.staleness = stalenessThreshold
		m.hardLifetime = tokenHardLifetime
	}
}

// Manager is the authentication session orchestrator. It owns the only
// mutable Session, exposes the collaborator-facing contract and drives the
// Unauthenticated/Authenticated state machine. Construct one per application
// and inject it; there is no package-level instance.
type Manager struct {
	store    sessionstore.Store
	provider provider.Client
	nowTime  func() time.Time

	refreshInterval time.Duration
	staleness       time.Duration
	hardLifetime    time.Duration

	mu       sync.Mutex
	session  *sessionstore.Session
	identity *provider.Identity
	// generation increments on every transition; in-flight provider calls
	// compare it before committing so a raced sign-out is never resurrected.
	generation uint64

	observers    map[int]func(Snapshot)
	nextObserver int
	lastNotified bool

	scheduler *Scheduler
}

// New creates a Manager. Store and Provider are required.
func New(deps Deps, options ...Option) (*Manager, error) {
	if deps.Store == nil {
		return nil, errors.New("[New Manager] Store is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("[New Manager] Provider is required")
	}

	m := &Manager{
		store:           deps.Store,
		provider:        deps.Provider,
		nowTime:         time.Now,
		refreshInterval: 30 * time.Minute,
		staleness:       50 * time.Minute,
		hardLifetime:    8 * time.Hour,
		observers:       make(map[int]func(Snapshot)),
	}

	for _, opt := range options {
		opt(m)
	}

	if m.refreshInterval <= 0 || m.staleness <= 0 {
		return nil, errors.New("[New Manager] refresh interval and staleness threshold must be positive")
	}
	if m.refreshInterval > m.staleness {
		return nil, errors.New("[New Manager] refresh interval must not exceed the staleness threshold")
	}

	m.scheduler = newScheduler(m.refreshInterval, m.scheduledRefresh)

	return m, nil
}

// IsAuthenticated reports whether an in-memory session exists. It never
// triggers provider I/O.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// CurrentUser returns the authenticated identity, nil when signed out.
func (m *Manager) CurrentUser() *provider.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return nil
	}
	copied := *m.identity
	return &copied
}

// AccessToken returns the current access token, "" when signed out. It never
// triggers provider I/O; refreshing is always an explicit operation.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ""
	}
	return m.session.AccessToken
}

// Snapshot returns the current collaborator-facing projection.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{IsAuthenticated: m.session != nil}
	if m.identity != nil {
		copied := *m.identity
		snap.CurrentUser = &copied
	}
	return snap
}

// Subscribe registers fn to be called on every transition between
// Authenticated and Unauthenticated. The returned function unregisters it.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	id := m.nextObserver
	m.nextObserver++
	m.observers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

// transitionLocked recomputes the snapshot after a state change and, when the
// authenticated flag flipped since the last notification, returns the
// observers to call once the lock is released.
func (m *Manager) transitionLocked() (Snapshot, []func(Snapshot)) {
	snap := m.snapshotLocked()
	if snap.IsAuthenticated == m.lastNotified {
		return snap, nil
	}
	m.lastNotified = snap.IsAuthenticated

	observers := make([]func(Snapshot), 0, len(m.observers))
	for _, fn := range m.observers {
		observers = append(observers, fn)
	}
	return snap, observers
}

func notify(snap Snapshot, observers []func(Snapshot)) {
	for _, fn := range observers {
		fn(snap)
	}
}

// SetSessionFromTokens validates redirect-delivered tokens with the provider
// and, on success, establishes the session, persists it and starts the
// background refresh scheduler. A prior session is left untouched on failure.
func (m *Manager) SetSessionFromTokens(ctx context.Context, accessToken, refreshToken string) error {
	grant, err := m.provider.ExchangeToken(ctx, accessToken, refreshToken)
	if err != nil {
		return errors.Wrap(err, "[Manager SetSessionFromTokens] token exchange")
	}

	now := m.nowTime()
	session := &sessionstore.Session{
		ID:           uuid.NewString(),
		AccessToken:  grant.Tokens.AccessToken,
		RefreshToken: grant.Tokens.RefreshToken,
		UserID:       grant.Identity.UserID,
		Email:        grant.Identity.Email,
		StoredAt:     now,
	}

	m.mu.Lock()
	m.session = session
	identity := grant.Identity
	m.identity = &identity
	m.generation++
	persist := *session
	snap, observers := m.transitionLocked()
	m.mu.Unlock()

	if err := m.store.SaveSession(ctx, persist); err != nil {
		// Memory-only mode: the login itself succeeded.
		log.Warn().Err(err).Str("session_id", persist.ID).Msg("Failed to persist session, continuing in memory only")
	}

	m.scheduler.Start()
	notify(snap, observers)
	log.Info().Str("session_id", persist.ID).Str("user_id", persist.UserID).Msg("Session established")
	return nil
}

// RefreshCurrentUser re-validates the session's tokens with the provider and
// refreshes the stored identity. Provider rejection is unrecoverable here: the
// session is cleared (forced logout) and the error returned.
func (m *Manager) RefreshCurrentUser(ctx context.Context) error {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return apperrors.ErrNotAuthenticated
	}
	accessToken := m.session.AccessToken
	refreshToken := m.session.RefreshToken
	generation := m.generation
	m.mu.Unlock()

	grant, err := m.provider.ExchangeToken(ctx, accessToken, refreshToken)
	if err != nil {
		m.forceLogoutIfCurrent(ctx, generation, "identity re-validation failed")
		return errors.Wrap(err, "[Manager RefreshCurrentUser] token exchange")
	}

	now := m.nowTime()
	m.mu.Lock()
	if m.session == nil || m.generation != generation {
		// Signed out while the provider call was in flight; discard.
		m.mu.Unlock()
		return nil
	}
	identity := grant.Identity
	m.identity = &identity
	m.session.UserID = grant.Identity.UserID
	m.session.Email = grant.Identity.Email
	if now.After(m.session.StoredAt) {
		m.session.StoredAt = now
	}
	persist := *m.session
	m.mu.Unlock()

	if err := m.store.SaveSession(ctx, persist); err != nil {
		log.Warn().Err(err).Str("session_id", persist.ID).Msg("Failed to persist refreshed session")
	}
	return nil
}

// SignOut revokes the session with the provider (best effort), clears the
// in-memory and persisted session together with any pending login state, and
// stops the scheduler. Calling it while signed out is a no-op success.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return nil
	}
	tokens := provider.Tokens{AccessToken: m.session.AccessToken, RefreshToken: m.session.RefreshToken}
	sessionID := m.session.ID
	m.session = nil
	m.identity = nil
	m.generation++
	snap, observers := m.transitionLocked()
	m.mu.Unlock()

	m.scheduler.Stop()

	if err := m.provider.Revoke(ctx, tokens); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("Remote revocation failed, signing out locally")
	}

	sessionErr := m.store.ClearSession(ctx)
	pendingErr := m.store.ClearPendingState(ctx)

	notify(snap, observers)
	log.Info().Str("session_id", sessionID).Msg("Signed out")

	if sessionErr != nil {
		return errors.Wrap(sessionErr, "[Manager SignOut] failed to clear persisted session")
	}
	if pendingErr != nil {
		return errors.Wrap(pendingErr, "[Manager SignOut] failed to clear pending login state")
	}
	return nil
}

// RestoreSession loads a persisted session at startup and re-validates it
// with the provider. A session the provider no longer accepts is cleared
// rather than left stale in memory; storage read failures restore nothing.
func (m *Manager) RestoreSession(ctx context.Context) error {
	persisted, err := m.store.LoadSession(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read persisted session, starting signed out")
		return nil
	}
	if persisted == nil {
		return nil
	}

	m.mu.Lock()
	if m.session != nil {
		m.mu.Unlock()
		return nil
	}
	m.session = persisted
	m.identity = &provider.Identity{UserID: persisted.UserID, Email: persisted.Email}
	m.generation++
	m.mu.Unlock()

	if err := m.RefreshCurrentUser(ctx); err != nil {
		return errors.Wrap(err, "[Manager RestoreSession] persisted session rejected")
	}

	m.mu.Lock()
	snap, observers := m.transitionLocked()
	m.mu.Unlock()

	m.scheduler.Start()
	notify(snap, observers)
	log.Info().Str("session_id", persisted.ID).Str("user_id", persisted.UserID).Msg("Session restored")
	return nil
}

// Close stops the background scheduler without signing out. For process
// shutdown; the persisted session survives for the next start.
func (m *Manager) Close() {
	m.scheduler.Stop()
}

// forceLogoutIfCurrent clears the session unless a transition already
// happened since generation was captured. Used by in-flight provider calls so
// their failure never clobbers a newer session.
func (m *Manager) forceLogoutIfCurrent(ctx context.Context, generation uint64, reason string) {
	m.mu.Lock()
	if m.session == nil || m.generation != generation {
		m.mu.Unlock()
		return
	}
	sessionID := m.session.ID
	m.session = nil
	m.identity = nil
	m.generation++
	snap, observers := m.transitionLocked()
	m.mu.Unlock()

	m.scheduler.Stop()

	if err := m.store.ClearSession(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to clear persisted session during forced logout")
	}
	if err := m.store.ClearPendingState(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to clear pending login state during forced logout")
	}

	notify(snap, observers)
	log.Warn().Str("session_id", sessionID).Str("reason", reason).Msg("Forced logout")
}
