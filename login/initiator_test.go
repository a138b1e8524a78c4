package login_test

import (
	"context"
	"net/url"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/rulehub/rulehub-client/authsession"
	"github.com/rulehub/rulehub-client/authsession/sessionstore/storefakes"
	"github.com/rulehub/rulehub-client/login"
	"github.com/rulehub/rulehub-client/provider"
	"github.com/rulehub/rulehub-client/provider/providerfakes"
)

const (
	testLoginEndpoint = "https://auth.rulehub.example/login"
	testCallbackURL   = "http://127.0.0.1:8428/auth/callback"
)

type fakeOpener struct {
	opened  []string
	openErr error
}

func (f *fakeOpener) Open(url string) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.opened = append(f.opened, url)
	return nil
}

type stubNonceGenerator struct {
	nonces []string
	next   int
	err    error
}

func (s *stubNonceGenerator) Generate() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	nonce := s.nonces[s.next%len(s.nonces)]
	s.next++
	return nonce, nil
}

type initiatorFixture struct {
	store     *storefakes.FakeStore
	provider  *providerfakes.FakeClient
	manager   *authsession.Manager
	opener    *fakeOpener
	nonces    *stubNonceGenerator
	initiator *login.Initiator
}

func setupInitiatorFixture(t *testing.T) *initiatorFixture {
	t.Helper()

	f := &initiatorFixture{
		store:    storefakes.NewFakeStore(),
		provider: providerfakes.NewFakeClient(),
		opener:   &fakeOpener{},
		nonces:   &stubNonceGenerator{nonces: []string{"nonce-1", "nonce-2"}},
	}
	f.provider.RegisterToken("access-token-1", provider.Identity{UserID: "user-1", Email: "john.doe@example.com"})

	manager, err := authsession.New(authsession.Deps{Store: f.store, Provider: f.provider})
	require.NoError(t, err)
	f.manager = manager
	t.Cleanup(manager.Close)

	initiator, err := login.NewInitiator(manager, f.store, f.nonces, f.opener, testLoginEndpoint, testCallbackURL)
	require.NoError(t, err)
	f.initiator = initiator

	return f
}

func TestBeginLoginOpensAuthorizationURL(t *testing.T) {
	f := setupInitiatorFixture(t)

	require.NoError(t, f.initiator.BeginLogin(context.Background()))

	require.Len(t, f.opener.opened, 1)
	opened, err := url.Parse(f.opener.opened[0])
	require.NoError(t, err)
	require.Equal(t, "https", opened.Scheme)
	require.Equal(t, "/login", opened.Path)
	require.Equal(t, testCallbackURL, opened.Query().Get("redirect"))
	require.Equal(t, "nonce-1", opened.Query().Get("state"))

	require.Equal(t, "nonce-1", f.store.PendingState())
}


func TestBeginLoginAbortsWhenPendingStateCannotBeSaved(t *testing.T) {
	f := setupInitiatorFixture(t)
	f.store.SavePendingErr = errors.New("disk full")

	err := f.initiator.BeginLogin(context.Background())
	require.Error(t, err)

	// never open a redirect whose state could not be recorded
	require.Empty(t, f.opener.opened)
}

func TestBeginLoginShortCircuitsWhenAuthenticated(t *testing.T) {
	f := setupInitiatorFixture(t)
	require.NoError(t, f.manager.SetSessionFromTokens(context.Background(), "access-token-1", ""))

	require.NoError(t, f.initiator.BeginLogin(context.Background()))

	require.Empty(t, f.opener.opened)
	require.Empty(t, f.store.PendingState())
}

func TestBeginLoginOverwritesPriorPendingState(t *testing.T) {
	f := setupInitiatorFixture(t)

	require.NoError(t, f.initiator.BeginLogin(context.Background()))
	require.NoError(t, f.initiator.BeginLogin(context.Background()))

	// the first nonce is gone: a late callback carrying it can never validate
	require.Equal(t, "nonce-2", f.store.PendingState())
	require.Len(t, f.opener.opened, 2)
}

func TestNewInitiatorValidatesArguments(t *testing.T) {
	f := setupInitiatorFixture(t)

	_, err := login.NewInitiator(nil, f.store, f.nonces, f.opener, testLoginEndpoint, testCallbackURL)
	require.Error(t, err)

	_, err = login.NewInitiator(f.manager, f.store, f.nonces, f.opener, "", testCallbackURL)
	require.Error(t, err)
}
