package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"account-platform/backend/internal/platform/id"
	"account-platform/backend/internal/user/domain"
)

var (
	// ErrUnknownProvider is returned for provider keys outside the
	// configured set.
	ErrUnknownProvider = errors.New("unknown oauth provider")
	// ErrExchangeFailed covers any failed code exchange: transport errors,
	// non-200 responses, and responses without an access token.
	ErrExchangeFailed = errors.New("oauth code exchange failed")
	// ErrEmptyProfile is returned when the provider profile lacks the fields
	// needed to resolve an account.
	ErrEmptyProfile = errors.New("oauth profile missing required fields")
)

// Profile is the normalized identity fetched from a provider.
type Profile struct {
	ProviderID string
	Email      string
	Username   string // may be empty; a fallback is derived on create
	AvatarURL  string
	FullName   string
}

// Repo is the slice of the user repository the bridge needs.
type Repo interface {
	GetByProvider(ctx context.Context, provider, providerID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
}

// Service resolves provider callbacks to local user accounts.
type Service struct {
	providers  map[string]ProviderConfig
	repo       Repo
	httpClient *http.Client
}

// NewService returns a Service over the given providers and user repository.
// httpClient may be nil; a client with a 10s timeout is used then.
func NewService(providers map[string]ProviderConfig, repo Repo, httpClient *http.Client) *Service {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Service{providers: providers, repo: repo, httpClient: httpClient}
}

// Provider returns the config for the given provider key.
func (s *Service) Provider(provider string) (ProviderConfig, error) {
	p, ok := s.providers[provider]
	if !ok {
		return ProviderConfig{}, ErrUnknownProvider
	}
	return p, nil
}

// AuthorizeURL returns the authorization redirect target for provider.
func (s *Service) AuthorizeURL(provider string) (string, error) {
	p, err := s.Provider(provider)
	if err != nil {
		return "", err
	}
	return p.AuthorizeURL(), nil
}

// ExchangeCode trades an authorization code for the provider's access token.
// One POST, no retries; every failure mode maps to ErrExchangeFailed.
func (s *Service) ExchangeCode(ctx context.Context, provider, code string) (string, error) {
	p, err := s.Provider(provider)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", p.RedirectURI)
	form.Set("client_id", p.ClientID)
	form.Set("client_secret", p.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", ErrExchangeFailed
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", ErrExchangeFailed
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", ErrExchangeFailed
	}
	if payload.AccessToken == "" {
		return "", ErrExchangeFailed
	}
	return payload.AccessToken, nil
}

// FetchProfile loads the provider profile for accessToken and normalizes it.
func (s *Service) FetchProfile(ctx context.Context, provider, accessToken string) (Profile, error) {
	p, err := s.Provider(provider)
	if err != nil {
		return Profile{}, err
	}
	switch provider {
	case ProviderGoogle:
		return s.fetchGoogleProfile(ctx, p, accessToken)
	case ProviderGitHub:
		return s.fetchGitHubProfile(ctx, p, accessToken)
	}
	return Profile{}, ErrUnknownProvider
}

func (s *Service) fetchGoogleProfile(ctx context.Context, p ProviderConfig, accessToken string) (Profile, error) {
	var payload struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		GivenName string `json:"given_name"`
		Picture   string `json:"picture"`
		Name      string `json:"name"`
	}
	if err := s.getJSON(ctx, p.UserInfoURL, accessToken, &payload); err != nil {
		return Profile{}, err
	}
	if payload.ID == "" {
		return Profile{}, ErrEmptyProfile
	}
	return Profile{
		ProviderID: payload.ID,
		Email:      payload.Email,
		Username:   strings.ToLower(payload.GivenName),
		AvatarURL:  payload.Picture,
		FullName:   payload.Name,
	}, nil
}

// fetchGitHubProfile needs two calls: the profile endpoint hides the email for
// most accounts, so the verified address comes from the emails endpoint,
// preferring the primary one and falling back to the first listed.
func (s *Service) fetchGitHubProfile(ctx context.Context, p ProviderConfig, accessToken string) (Profile, error) {
	var payload struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		AvatarURL string `json:"avatar_url"`
		Name      string `json:"name"`
		Email     string `json:"email"`
	}
	if err := s.getJSON(ctx, p.UserInfoURL, accessToken, &payload); err != nil {
		return Profile{}, err
	}
	if payload.ID == 0 {
		return Profile{}, ErrEmptyProfile
	}

	var emails []struct {
		Email   string `json:"email"`
		Primary bool   `json:"primary"`
	}
	if err := s.getJSON(ctx, p.EmailsURL, accessToken, &emails); err != nil {
		return Profile{}, err
	}
	email := payload.Email
	for i, e := range emails {
		if e.Primary {
			email = e.Email
			break
		}
		if i == 0 {
			email = e.Email
		}
	}
	if email == "" {
		return Profile{}, ErrEmptyProfile
	}

	return Profile{
		ProviderID: strconv.FormatInt(payload.ID, 10),
		Email:      email,
		Username:   payload.Login,
		AvatarURL:  payload.AvatarURL,
		FullName:   payload.Name,
	}, nil
}

func (s *Service) getJSON(ctx context.Context, rawURL, accessToken string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New("profile request failed")
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetOrCreateUser resolves a provider identity to a local account in three
// tiers: an existing (provider, providerID) linkage wins; otherwise a user
// with the same email is linked in place; otherwise a fresh passwordless
// account is created. Profile fields only ever fill in, they never erase.
func (s *Service) GetOrCreateUser(ctx context.Context, provider, providerID, email, username, avatarURL, fullName string) (*domain.User, error) {
	u, err := s.repo.GetByProvider(ctx, provider, providerID)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}

	u, err = s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u != nil {
		u.OAuthProvider = provider
		u.OAuthProviderID = providerID
		if u.AvatarURL == "" {
			u.AvatarURL = avatarURL
		}
		if u.FullName == "" {
			u.FullName = fullName
		}
		u.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, u); err != nil {
			return nil, err
		}
		return u, nil
	}

	if username == "" {
		username = provider + "_" + providerID
	}
	username, err = s.availableUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	userID, err := id.NewID()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u = &domain.User{
		ID:              userID,
		Email:           email,
		Username:        username,
		Role:            domain.RoleUser,
		OAuthProvider:   provider,
		OAuthProviderID: providerID,
		AvatarURL:       avatarURL,
		FullName:        fullName,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// availableUsername appends the first numeric suffix that makes the name free:
// name, name1, name2, and so on.
func (s *Service) availableUsername(ctx context.Context, base string) (string, error) {
	candidate := base
	for counter := 1; ; counter++ {
		existing, err := s.repo.GetByUsername(ctx, candidate)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(counter)
	}
}

// HandleCallback runs the full callback flow: exchange the code, fetch the
// profile, and resolve it to a user.
func (s *Service) HandleCallback(ctx context.Context, provider, code string) (*domain.User, error) {
	token, err := s.ExchangeCode(ctx, provider, code)
	if err != nil {
		return nil, err
	}
	profile, err := s.FetchProfile(ctx, provider, token)
	if err != nil {
		return nil, err
	}
	return s.GetOrCreateUser(ctx, provider, profile.ProviderID, profile.Email,
		profile.Username, profile.AvatarURL, profile.FullName)
}
