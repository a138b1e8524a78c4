package providerfakes

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/rulehub/rulehub-client/provider"
)

var _ provider.Client = (*FakeClient)(nil)

// FakeClient is a hand-rolled provider fake. Identities are registered per
// access token; unknown tokens are rejected. Call counts are recorded so
// tests can assert that an operation performed no network I/O.
type FakeClient struct {
	lock sync.Mutex

	identities map[string]provider.Identity // access token -> identity

	ExchangeErr error
	RefreshErr  error
	RevokeErr   error

	// RefreshResult is returned by RefreshToken when set and RefreshErr is nil.
	RefreshResult *provider.Tokens

	ExchangeCalls int
	RefreshCalls  int
	RevokeCalls   int

	RevokedTokens []provider.Tokens
}

func NewFakeClient() *FakeClient {
	return &FakeClient{identities: make(map[string]provider.Identity)}
}

// RegisterToken makes accessToken valid and bound to the given identity.
func (f *FakeClient) RegisterToken(accessToken string, identity provider.Identity) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.identities[accessToken] = identity
}

func (f *FakeClient) ExchangeToken(ctx context.Context, accessToken, refreshToken string) (*provider.Grant, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.ExchangeCalls++
	if f.ExchangeErr != nil {
		return nil, f.ExchangeErr
	}

	identity, ok := f.identities[accessToken]
	if !ok {
		return nil, errors.New("unknown access token")
	}
	return &provider.Grant{
		Identity: identity,
		Tokens:   provider.Tokens{AccessToken: accessToken, RefreshToken: refreshToken},
	}, nil
}

func (f *FakeClient) RefreshToken(ctx context.Context, refreshToken string) (*provider.Tokens, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.RefreshCalls++
	if f.RefreshErr != nil {
		return nil, f.RefreshErr
	}
	if f.RefreshResult != nil {
		return &provider.Tokens{
			AccessToken:  f.RefreshResult.AccessToken,
			RefreshToken: f.RefreshResult.RefreshToken,
		}, nil
	}
	return &provider.Tokens{AccessToken: "refreshed-access", RefreshToken: refreshToken}, nil
}

func (f *FakeClient) Revoke(ctx context.Context, tokens provider.Tokens) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.RevokeCalls++
	f.RevokedTokens = append(f.RevokedTokens, tokens)
	return f.RevokeErr
}
