package authsession

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/rulehub/rulehub-client/authsession/sessionstore"
)

// Scheduler arms a periodic timer that silently refreshes the access token
// before it goes stale. It runs exactly while the manager is authenticated:
// the manager starts it on login/restore and stops it on sign-out.
type Scheduler struct {
	mu       sync.Mutex
	interval time.Duration
	tick     func(context.Context)
	stopCh   chan struct{}
}

func newScheduler(interval time.Duration, tick func(context.Context)) *Scheduler {
	return &Scheduler{interval: interval, tick: tick}
}

// Start arms the timer. Idempotent: an already armed timer is cancelled
// first, so two consecutive starts leave exactly one ticking.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopCh != nil {
		close(s.stopCh)
	}
	stopCh := make(chan struct{})
	s.stopCh = stopCh
	go s.run(stopCh)
}

// Stop cancels the timer. Safe to call repeatedly or before any Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
}

func (s *Scheduler) run(stopCh chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.fire()
		}
	}
}

// fire runs one tick. A failing or panicking tick must never take the timer
// down with it; errors stay inside the tick boundary.
func (s *Scheduler) fire() {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Refresh tick panicked")
		}
	}()
	s.tick(context.Background())
}

// scheduledRefresh is the scheduler's tick body. It refreshes the session
// once its age passes the staleness threshold. Failures are logged and left
// for the next tick, escalating to forced logout only once the token's hard
// lifetime is behind us.
func (m *Manager) scheduledRefresh(ctx context.Context) {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return
	}
	session := *m.session
	generation := m.generation
	m.mu.Unlock()

	age := m.nowTime().Sub(session.StoredAt)
	if age <= m.staleness {
		return
	}

	log.Debug().Str("session_id", session.ID).Dur("age", age).Msg("Session stale, refreshing token")

	tokens, err := m.provider.RefreshToken(ctx, session.RefreshToken)
	if err != nil {
		if m.nowTime().After(m.hardDeadline(session)) {
			log.Warn().Err(err).Str("session_id", session.ID).Msg("Token refresh failed past hard lifetime")
			m.forceLogoutIfCurrent(ctx, generation, "token refresh failed past hard lifetime")
			return
		}
		log.Warn().Err(err).Str("session_id", session.ID).Msg("Token refresh failed, retrying next tick")
		return
	}

	now := m.nowTime()
	m.mu.Lock()
	if m.session == nil || m.generation != generation {
		// Signed out while the refresh was in flight; drop the result.
		m.mu.Unlock()
		log.Debug().Str("session_id", session.ID).Msg("Discarding refresh result for cleared session")
		return
	}
	m.session.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		m.session.RefreshToken = tokens.RefreshToken
	}
	if now.After(m.session.StoredAt) {
		m.session.StoredAt = now
	}
	persist := *m.session
	m.mu.Unlock()

	if err := m.store.SaveSession(ctx, persist); err != nil {
		log.Warn().Err(err).Str("session_id", persist.ID).Msg("Failed to persist refreshed session")
	}
}

// hardDeadline is the point past which a session that cannot be refreshed is
// abandoned. When the access token is a JWT its exp claim is authoritative;
// otherwise the configured hard lifetime counts from the last refresh.
func (m *Manager) hardDeadline(session sessionstore.Session) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(session.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return session.StoredAt.Add(m.hardLifetime)
}
