package config

import "fmt"

// ProviderConfig describes the external identity provider the client logs in
// against, and the loopback callback the provider redirects back to.
type ProviderConfig interface {
	GetIssuerURL() string
	GetLoginEndpoint() string
	GetClientID() string
	GetClientSecret() string
	GetCallbackPath() string
	GetCallbackURL() string
}

type Provider struct{}

var _ ProviderConfig = Provider{}

func (Provider) GetIssuerURL() string {
	return GetEnv("RULEHUB_ISSUER_URL", "https://auth.rulehub.io")
}

// GetLoginEndpoint is the browser-facing login page. It defaults to the
// issuer's /login route but can point anywhere the provider hosts it.
func (p Provider) GetLoginEndpoint() string {
	return GetEnv("RULEHUB_LOGIN_ENDPOINT", p.GetIssuerURL()+"/login")
}

func (Provider) GetClientID() string {
	return GetEnv("RULEHUB_CLIENT_ID", "rulehub-desktop")
}

func (Provider) GetClientSecret() string {
	return GetEnv("RULEHUB_CLIENT_SECRET", "")
}

func (Provider) GetCallbackPath() string {
	return "/auth/callback"
}

func (p Provider) GetCallbackURL() string {
	port := GetEnv(portEnvVar, "8428")
	return GetEnv("RULEHUB_CALLBACK_URL", fmt.Sprintf("http://127.0.0.1:%s%s", port, p.GetCallbackPath()))
}
