// Package login implements the client side of the external-redirect login
// flow: it seeds the single pending CSRF nonce and sends the user's browser
// to the provider's login page. The flow completes (or not) at the callback
// server, possibly much later.
package login

import (
	"context"
	"net/url"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/rulehub/rulehub-client/authsession"
	"github.com/rulehub/rulehub-client/authsession/sessionstore"
)

// Initiator builds the authorization URL and opens it externally. It only
// writes the pending nonce slot; it never touches the session itself.
type Initiator struct {
	auth          *authsession.Manager
	store         sessionstore.Store
	nonces        NonceGenerator
	opener        URLOpener
	loginEndpoint string
	callbackURL   string
}

// NewInitiator wires an Initiator. All collaborators are required.
func NewInitiator(auth *authsession.Manager, store sessionstore.Store, nonces NonceGenerator, opener URLOpener, loginEndpoint, callbackURL string) (*Initiator, error) {
	if auth == nil {
		return nil, errors.New("[NewInitiator] auth manager is required")
	}
	if store == nil {
		return nil, errors.New("[NewInitiator] store is required")
	}
	if nonces == nil {
		return nil, errors.New("[NewInitiator] nonce generator is required")
	}
	if opener == nil {
		return nil, errors.New("[NewInitiator] URL opener is required")
	}
	if loginEndpoint == "" || callbackURL == "" {
		return nil, errors.New("[NewInitiator] login endpoint and callback URL are required")
	}

	return &Initiator{
		auth:          auth,
		store:         store,
		nonces:        nonces,
		opener:        opener,
		loginEndpoint: loginEndpoint,
		callbackURL:   callbackURL,
	}, nil
}

// BeginLogin starts a new login attempt. Initiating again before a prior
// redirect completes overwrites the pending nonce, which invalidates the
// earlier attempt even if its redirect eventually arrives. The browser is
// only opened once the nonce is durably recorded: a redirect whose state
// could never be validated must not be issued at all.
func (i *Initiator) BeginLogin(ctx context.Context) error {
	if i.auth.IsAuthenticated() {
		log.Info().Msg("Already signed in, skipping login")
		return nil
	}

	nonce, err := i.nonces.Generate()
	if err != nil {
		return errors.Wrap(err, "[Initiator BeginLogin] nonce generation")
	}

	if err := i.store.SavePendingState(ctx, nonce); err != nil {
		return errors.Wrap(err, "[Initiator BeginLogin] failed to record pending login state")
	}

	authorizeURL, err := i.buildAuthorizationURL(nonce)
	if err != nil {
		return errors.Wrap(err, "[Initiator BeginLogin]")
	}

	if err := i.opener.Open(authorizeURL); err != nil {
		return errors.Wrap(err, "[Initiator BeginLogin] failed to open browser")
	}

	log.Info().Str("login_endpoint", i.loginEndpoint).Msg("Login started, waiting for redirect")
	return nil
}

func (i *Initiator) buildAuthorizationURL(nonce string) (string, error) {
	u, err := url.Parse(i.loginEndpoint)
	if err != nil {
		return "", errors.Wrap(err, "invalid login endpoint")
	}

	q := u.Query()
	q.Set("redirect", i.callbackURL)
	q.Set("state", nonce)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
