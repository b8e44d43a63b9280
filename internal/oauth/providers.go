// Package oauth links Google and GitHub sign-in to local accounts: it builds
// authorization URLs, exchanges callback codes for provider access tokens,
// fetches the provider profile, and resolves it to a user row.
package oauth

import (
	"net/url"
	"strings"
)

// Provider keys. These are also the values stored in users.oauth_provider.
const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

// Credentials is the per-provider client registration from config.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// ProviderConfig describes one upstream identity provider.
type ProviderConfig struct {
	Name         string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	EmailsURL    string // secondary email endpoint; GitHub only
	Scopes       []string
}

// Providers returns the supported provider set with its well-known endpoints.
func Providers(google, github Credentials) map[string]ProviderConfig {
	return map[string]ProviderConfig{
		ProviderGoogle: {
			Name:         "Google",
			ClientID:     google.ClientID,
			ClientSecret: google.ClientSecret,
			RedirectURI:  google.RedirectURI,
			AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL:     "https://oauth2.googleapis.com/token",
			UserInfoURL:  "https://www.googleapis.com/oauth2/v2/userinfo",
			Scopes:       []string{"openid", "email", "profile"},
		},
		ProviderGitHub: {
			Name:         "GitHub",
			ClientID:     github.ClientID,
			ClientSecret: github.ClientSecret,
			RedirectURI:  github.RedirectURI,
			AuthURL:      "https://github.com/login/oauth/authorize",
			TokenURL:     "https://github.com/login/oauth/access_token",
			UserInfoURL:  "https://api.github.com/user",
			EmailsURL:    "https://api.github.com/user/emails",
			Scopes:       []string{"user:email", "read:user"},
		},
	}
}

// AuthorizeURL builds the provider's authorization redirect target. The URL is
// deterministic for a given config: no state or nonce parameter is attached,
// so callers that need CSRF binding must layer it on top.
func (p ProviderConfig) AuthorizeURL() string {
	query := url.Values{}
	query.Set("client_id", p.ClientID)
	query.Set("redirect_uri", p.RedirectURI)
	query.Set("response_type", "code")
	query.Set("scope", strings.Join(p.Scopes, " "))
	return p.AuthURL + "?" + query.Encode()
}
