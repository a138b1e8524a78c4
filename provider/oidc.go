package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/rulehub/rulehub-client/internal/config"
	apperrors "github.com/rulehub/rulehub-client/internal/errors"
)

// OIDCClient talks to the RuleHub identity provider through standard OIDC
// discovery. Token validation happens via the userinfo endpoint, refreshes go
// through the token endpoint, and revocation uses the advertised
// revocation_endpoint when the provider has one.
type OIDCClient struct {
	provider     *oidc.Provider
	oauth2Config *oauth2.Config
	revokeURL    string
	httpClient   *http.Client
}

var _ Client = (*OIDCClient)(nil)

// NewOIDCClient runs discovery against the configured issuer and builds the
// adapter. Discovery failure is fatal: without endpoints nothing else works.
func NewOIDCClient(ctx context.Context, cfg config.ProviderConfig) (*OIDCClient, error) {
	oidcProvider, err := oidc.NewProvider(ctx, cfg.GetIssuerURL())
	if err != nil {
		return nil, fmt.Errorf("[NewOIDCClient] failed to create OIDC provider: %w", err)
	}

	var extra struct {
		RevocationEndpoint string `json:"revocation_endpoint"`
	}
	if err := oidcProvider.Claims(&extra); err != nil {
		log.Err(err).Msg("Failed to read extra discovery claims")
	}

	return &OIDCClient{
		provider: oidcProvider,
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.GetClientID(),
			ClientSecret: cfg.GetClientSecret(),
			Endpoint:     oidcProvider.Endpoint(),
			RedirectURL:  cfg.GetCallbackURL(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess},
		},
		revokeURL:  extra.RevocationEndpoint,
		httpClient: http.DefaultClient,
	}, nil
}

// ExchangeToken validates the access token against the userinfo endpoint. A
// token the provider does not recognise comes back as ErrProviderRejected.
func (c *OIDCClient) ExchangeToken(ctx context.Context, accessToken, refreshToken string) (*Grant, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})

	userInfo, err := c.provider.UserInfo(ctx, ts)
	if err != nil {
		return nil, fmt.Errorf("[OIDCClient ExchangeToken] userinfo: %w (%v)", apperrors.ErrProviderRejected, err)
	}

	return &Grant{
		Identity: Identity{UserID: userInfo.Subject, Email: userInfo.Email},
		Tokens:   Tokens{AccessToken: accessToken, RefreshToken: refreshToken},
	}, nil
}

// RefreshToken exchanges the refresh token at the token endpoint. The
// provider may rotate the refresh token; when it does not, the old one is
// carried forward.
func (c *OIDCClient) RefreshToken(ctx context.Context, refreshToken string) (*Tokens, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("[OIDCClient RefreshToken] no refresh token: %w", apperrors.ErrProviderRejected)
	}

	ts := c.oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := ts.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if apperrors.As(err, &retrieveErr) {
			return nil, fmt.Errorf("[OIDCClient RefreshToken] token endpoint: %w (%v)", apperrors.ErrProviderRejected, err)
		}
		return nil, fmt.Errorf("[OIDCClient RefreshToken] token endpoint unreachable: %w", err)
	}

	next := &Tokens{AccessToken: token.AccessToken, RefreshToken: token.RefreshToken}
	if next.RefreshToken == "" {
		next.RefreshToken = refreshToken
	}
	return next, nil
}

// Revoke posts each token to the revocation endpoint, refresh token first.
// Failures are logged, not returned per token: the caller is signing out
// locally either way.
func (c *OIDCClient) Revoke(ctx context.Context, tokens Tokens) error {
	if c.revokeURL == "" {
		log.Debug().Msg("Provider advertises no revocation endpoint, skipping revoke")
		return nil
	}

	var lastErr error
	revokeToken := func(token, tokenTypeHint string) {
		if token == "" {
			return
		}
		form := url.Values{}
		form.Set("token", token)
		form.Set("token_type_hint", tokenTypeHint)
		form.Set("client_id", c.oauth2Config.ClientID)
		if c.oauth2Config.ClientSecret != "" {
			form.Set("client_secret", c.oauth2Config.ClientSecret)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revokeURL, strings.NewReader(form.Encode()))
		if err != nil {
			lastErr = err
			return
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			log.Err(err).Str("token_type", tokenTypeHint).Msg("Failed to revoke token")
			lastErr = err
			return
		}
		resp.Body.Close()
	}

	revokeToken(tokens.RefreshToken, "refresh_token")
	revokeToken(tokens.AccessToken, "access_token")

	if lastErr != nil {
		return fmt.Errorf("[OIDCClient Revoke] revocation failed: %w", lastErr)
	}
	return nil
}
