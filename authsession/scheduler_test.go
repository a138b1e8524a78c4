package authsession

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/rulehub/rulehub-client/authsession/sessionstore"
	"github.com/rulehub/rulehub-client/authsession/sessionstore/storefakes"
	apperrors "github.com/rulehub/rulehub-client/internal/errors"
	"github.com/rulehub/rulehub-client/provider"
	"github.com/rulehub/rulehub-client/provider/providerfakes"
)

type schedulerFixture struct {
	store    *storefakes.FakeStore
	provider *providerfakes.FakeClient
	manager  *Manager
	now      time.Time
}

func setupSchedulerFixture(t *testing.T, options ...Option) *schedulerFixture {
	t.Helper()

	f := &schedulerFixture{
		store:    storefakes.NewFakeStore(),
		provider: providerfakes.NewFakeClient(),
		now:      time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	f.provider.RegisterToken("access-token-1", provider.Identity{UserID: "user-1", Email: "john.doe@example.com"})

	opts := append([]Option{
		WithNowTime(func() time.Time { return f.now }),
		WithRefreshPolicy(30*time.Minute, 50*time.Minute, 8*time.Hour),
	}, options...)
	manager, err := New(Deps{Store: f.store, Provider: f.provider}, opts...)
	require.NoError(t, err)
	f.manager = manager
	t.Cleanup(manager.Close)

	return f
}

func (f *schedulerFixture) login(t *testing.T) {
	t.Helper()
	require.NoError(t, f.manager.SetSessionFromTokens(context.Background(), "access-token-1", "refresh-token-1"))
}

func TestTickRefreshesStaleSession(t *testing.T) {
	f := setupSchedulerFixture(t)
	f.login(t)

	// 55 minutes old against a 50 minute staleness threshold
	f.now = f.now.Add(55 * time.Minute)
	f.manager.scheduledRefresh(context.Background())

	require.Equal(t, 1, f.provider.RefreshCalls)
	require.Equal(t, "refreshed-access", f.manager.AccessToken())
	require.True(t, f.store.StoredSession().StoredAt.Equal(f.now))
}

func TestTickLeavesFreshSessionAlone(t *testing.T) {
	f := setupSchedulerFixture(t)
	f.login(t)

	f.now = f.now.Add(10 * time.Minute)
	f.manager.scheduledRefresh(context.Background())

	require.Zero(t, f.provider.RefreshCalls)
	require.Equal(t, "access-token-1", f.manager.AccessToken())
}

func TestTickAfterSignOutDoesNothing(t *testing.T) {
	f := setupSchedulerFixture(t)
	f.login(t)
	require.NoError(t, f.manager.SignOut(context.Background()))

	f.now = f.now.Add(2 * time.Hour)
	f.manager.scheduledRefresh(context.Background())

	require.Zero(t, f.provider.RefreshCalls)
	require.Equal(t, 1, f.provider.ExchangeCalls, "only the login exchange")
}

func TestTickKeepsSessionOnRefreshFailure(t *testing.T) {
	f := setupSchedulerFixture(t)
	f.login(t)
	f.provider.RefreshErr = apperrors.ErrProviderRejected

	f.now = f.now.Add(55 * time.Minute)
	f.manager.scheduledRefresh(context.Background())

	// optimistic retry: the session survives this tick
	require.True(t, f.manager.IsAuthenticated())
	require.Equal(t, "access-token-1", f.manager.AccessToken())
	require.NotNil(t, f.store.StoredSession())
}

func TestTickForcesLogoutPastHardLifetime(t *testing.T) {
	f := setupSchedulerFixture(t)
	f.login(t)
	f.provider.RefreshErr = apperrors.ErrProviderRejected

	f.now = f.now.Add(9 * time.Hour)
	f.manager.scheduledRefresh(context.Background())

	require.False(t, f.manager.IsAuthenticated())
	require.Nil(t, f.store.StoredSession())
}

func TestHardDeadlineUsesJWTExpiryWhenAvailable(t *testing.T) {
	f := setupSchedulerFixture(t)

	exp := f.now.Add(20 * time.Minute)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()})
	signed, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)

	deadline := f.manager.hardDeadline(sessionstore.Session{AccessToken: signed, StoredAt: f.now})
	require.True(t, deadline.Equal(exp.Truncate(time.Second)))

	// opaque tokens fall back to the configured lifetime
	deadline = f.manager.hardDeadline(sessionstore.Session{AccessToken: "opaque", StoredAt: f.now})
	require.True(t, deadline.Equal(f.now.Add(8*time.Hour)))
}

func TestSchedulerStartIsIdempotent(t *testing.T) {
	f := setupSchedulerFixture(t, WithRefreshPolicy(20*time.Millisecond, 20*time.Millisecond, time.Hour))
	f.login(t)
	// keep the session permanently stale so every tick attempts a refresh
	f.provider.RefreshErr = apperrors.ErrProviderRejected
	f.now = f.now.Add(time.Minute)

	f.manager.scheduler.Start()
	f.manager.scheduler.Start()

	time.Sleep(70 * time.Millisecond)
	f.manager.scheduler.Stop()

	calls := f.provider.RefreshCalls
	require.GreaterOrEqual(t, calls, 1)
	require.LessOrEqual(t, calls, 4, "two consecutive starts must leave a single timer")

	// a stopped scheduler fires no further ticks
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, calls, f.provider.RefreshCalls)
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	f := setupSchedulerFixture(t)

	f.manager.scheduler.Stop()
	f.manager.scheduler.Stop()
	f.manager.scheduler.Start()
	f.manager.scheduler.Stop()
	f.manager.scheduler.Stop()
}
