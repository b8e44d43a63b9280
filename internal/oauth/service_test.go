package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"account-platform/backend/internal/user/domain"
)

type memRepo struct {
	mu sync.Mutex
	m  map[string]*domain.User
}

func newMemRepo() *memRepo {
	return &memRepo{m: make(map[string]*domain.User)}
}

func (r *memRepo) GetByProvider(ctx context.Context, provider, providerID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.m {
		if u.OAuthProvider == provider && u.OAuthProviderID == providerID {
			u2 := *u
			return &u2, nil
		}
	}
	return nil, nil
}

func (r *memRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.m {
		if u.Email == email {
			u2 := *u
			return &u2, nil
		}
	}
	return nil, nil
}

func (r *memRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.m {
		if u.Username == username {
			u2 := *u
			return &u2, nil
		}
	}
	return nil, nil
}

func (r *memRepo) Create(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u2 := *u
	r.m[u.ID] = &u2
	return nil
}

func (r *memRepo) Update(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u2 := *u
	r.m[u.ID] = &u2
	return nil
}

func (r *memRepo) add(u *domain.User) {
	r.mu.Lock()
	r.m[u.ID] = u
	r.mu.Unlock()
}

func TestAuthorizeURL(t *testing.T) {
	providers := Providers(
		Credentials{ClientID: "gid", RedirectURI: "https://app.example.com/cb/google"},
		Credentials{ClientID: "hid", RedirectURI: "https://app.example.com/cb/github"},
	)
	svc := NewService(providers, newMemRepo(), nil)

	raw, err := svc.AuthorizeURL(ProviderGoogle)
	if err != nil {
		t.Fatalf("AuthorizeURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Host != "accounts.google.com" {
		t.Errorf("host = %q", u.Host)
	}
	q := u.Query()
	if q.Get("client_id") != "gid" || q.Get("response_type") != "code" {
		t.Errorf("query = %v", q)
	}
	if q.Get("scope") != "openid email profile" {
		t.Errorf("scope = %q", q.Get("scope"))
	}
	if q.Get("state") != "" {
		t.Errorf("no state parameter expected, got %q", q.Get("state"))
	}

	// Identical inputs yield identical URLs.
	again, _ := svc.AuthorizeURL(ProviderGoogle)
	if again != raw {
		t.Error("authorize URL must be deterministic")
	}

	if _, err := svc.AuthorizeURL("gitlab"); err != ErrUnknownProvider {
		t.Errorf("unknown provider: want ErrUnknownProvider, got %v", err)
	}
}

// fakeGitHub serves the three GitHub endpoints the bridge talks to.
func fakeGitHub(t *testing.T, token string, profile map[string]interface{}, emails []map[string]interface{}) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := json.Marshal(map[string]string{"access_token": token})
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	})
	authed := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return false
		}
		return true
	}
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if !authed(w, r) {
			return
		}
		json.NewEncoder(w).Encode(profile)
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		if !authed(w, r) {
			return
		}
		json.NewEncoder(w).Encode(emails)
	})
	return httptest.NewServer(mux)
}

func githubProviders(srv *httptest.Server) map[string]ProviderConfig {
	providers := Providers(Credentials{}, Credentials{ClientID: "hid", ClientSecret: "hsec"})
	p := providers[ProviderGitHub]
	p.TokenURL = srv.URL + "/login/oauth/access_token"
	p.UserInfoURL = srv.URL + "/user"
	p.EmailsURL = srv.URL + "/user/emails"
	providers[ProviderGitHub] = p
	return providers
}

func TestExchangeCode(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotForm = r.PostForm
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1"})
	}))
	defer srv.Close()

	providers := Providers(Credentials{}, Credentials{ClientID: "hid", ClientSecret: "hsec", RedirectURI: "https://app/cb"})
	p := providers[ProviderGitHub]
	p.TokenURL = srv.URL
	providers[ProviderGitHub] = p
	svc := NewService(providers, newMemRepo(), srv.Client())

	tok, err := svc.ExchangeCode(context.Background(), ProviderGitHub, "code-1")
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if tok != "tok-1" {
		t.Errorf("token = %q", tok)
	}
	if gotForm.Get("code") != "code-1" || gotForm.Get("client_id") != "hid" ||
		gotForm.Get("client_secret") != "hsec" || gotForm.Get("grant_type") != "authorization_code" {
		t.Errorf("form = %v", gotForm)
	}
}

func TestExchangeCodeFailures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"non-200": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		},
		"no access token": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"error": "bad_verification_code"})
		},
		"not json": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>"))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()
			providers := Providers(Credentials{}, Credentials{})
			p := providers[ProviderGitHub]
			p.TokenURL = srv.URL
			providers[ProviderGitHub] = p
			svc := NewService(providers, newMemRepo(), srv.Client())

			if _, err := svc.ExchangeCode(context.Background(), ProviderGitHub, "c"); err != ErrExchangeFailed {
				t.Errorf("want ErrExchangeFailed, got %v", err)
			}
		})
	}
}

func TestFetchGitHubProfile(t *testing.T) {
	srv := fakeGitHub(t, "tok-1",
		map[string]interface{}{"id": 42, "login": "octo", "avatar_url": "https://a/octo.png", "name": "Octo Cat"},
		[]map[string]interface{}{
			{"email": "octo@old.example.com", "primary": false},
			{"email": "octo@example.com", "primary": true},
		})
	defer srv.Close()
	svc := NewService(githubProviders(srv), newMemRepo(), srv.Client())

	profile, err := svc.FetchProfile(context.Background(), ProviderGitHub, "tok-1")
	if err != nil {
		t.Fatalf("FetchProfile: %v", err)
	}
	if profile.ProviderID != "42" || profile.Username != "octo" {
		t.Errorf("profile = %+v", profile)
	}
	if profile.Email != "octo@example.com" {
		t.Errorf("email = %q, want the primary address", profile.Email)
	}
}

func TestFetchGitHubProfileNoPrimaryEmail(t *testing.T) {
	srv := fakeGitHub(t, "tok-1",
		map[string]interface{}{"id": 42, "login": "octo"},
		[]map[string]interface{}{
			{"email": "first@example.com", "primary": false},
			{"email": "second@example.com", "primary": false},
		})
	defer srv.Close()
	svc := NewService(githubProviders(srv), newMemRepo(), srv.Client())

	profile, err := svc.FetchProfile(context.Background(), ProviderGitHub, "tok-1")
	if err != nil {
		t.Fatalf("FetchProfile: %v", err)
	}
	if profile.Email != "first@example.com" {
		t.Errorf("email = %q, want first listed address", profile.Email)
	}
}

func TestFetchGitHubProfileNoEmailAtAll(t *testing.T) {
	srv := fakeGitHub(t, "tok-1",
		map[string]interface{}{"id": 42, "login": "octo"},
		[]map[string]interface{}{})
	defer srv.Close()
	svc := NewService(githubProviders(srv), newMemRepo(), srv.Client())

	if _, err := svc.FetchProfile(context.Background(), ProviderGitHub, "tok-1"); err != ErrEmptyProfile {
		t.Errorf("want ErrEmptyProfile, got %v", err)
	}
}

func TestFetchGoogleProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "g-7", "email": "ada@example.com", "given_name": "Ada",
			"picture": "https://a/ada.png", "name": "Ada Lovelace",
		})
	}))
	defer srv.Close()
	providers := Providers(Credentials{}, Credentials{})
	p := providers[ProviderGoogle]
	p.UserInfoURL = srv.URL
	providers[ProviderGoogle] = p
	svc := NewService(providers, newMemRepo(), srv.Client())

	profile, err := svc.FetchProfile(context.Background(), ProviderGoogle, "tok")
	if err != nil {
		t.Fatalf("FetchProfile: %v", err)
	}
	if profile.ProviderID != "g-7" || profile.Email != "ada@example.com" {
		t.Errorf("profile = %+v", profile)
	}
	if profile.Username != "ada" {
		t.Errorf("username = %q, want lowercased given name", profile.Username)
	}
}

func TestGetOrCreateUserExistingLinkage(t *testing.T) {
	repo := newMemRepo()
	repo.add(&domain.User{
		ID: "01", Email: "octo@example.com", Username: "octo",
		Role: domain.RoleModerator, IsActive: true,
		OAuthProvider: ProviderGitHub, OAuthProviderID: "42",
	})
	svc := NewService(Providers(Credentials{}, Credentials{}), repo, nil)

	u, err := svc.GetOrCreateUser(context.Background(), ProviderGitHub, "42",
		"changed@example.com", "other", "", "")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	if u.ID != "01" {
		t.Errorf("id = %q, want the linked user", u.ID)
	}
	if u.Role != domain.RoleModerator {
		t.Errorf("existing account fields must be untouched, role = %q", u.Role)
	}
}

func TestGetOrCreateUserLinksByEmail(t *testing.T) {
	repo := newMemRepo()
	repo.add(&domain.User{
		ID: "01", Email: "ada@example.com", Username: "ada",
		PasswordHash: "hash", Role: domain.RoleUser, IsActive: true,
		FullName: "A. Lovelace",
	})
	svc := NewService(Providers(Credentials{}, Credentials{}), repo, nil)

	u, err := svc.GetOrCreateUser(context.Background(), ProviderGoogle, "g-7",
		"ada@example.com", "ada2", "https://a/new.png", "")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	if u.ID != "01" {
		t.Fatalf("id = %q, want the email-matched user", u.ID)
	}
	if u.OAuthProvider != ProviderGoogle || u.OAuthProviderID != "g-7" {
		t.Errorf("linkage not recorded: %+v", u)
	}
	if u.Username != "ada" {
		t.Errorf("username must not change on link, got %q", u.Username)
	}
	if u.AvatarURL != "https://a/new.png" {
		t.Errorf("non-empty avatar should fill in, got %q", u.AvatarURL)
	}
	if u.FullName != "A. Lovelace" {
		t.Errorf("empty full name must not erase the existing one, got %q", u.FullName)
	}
	if u.PasswordHash != "hash" {
		t.Error("password hash must survive linking")
	}
}

func TestGetOrCreateUserLinkKeepsUserSetProfile(t *testing.T) {
	repo := newMemRepo()
	repo.add(&domain.User{
		ID: "01", Email: "ada@example.com", Username: "ada",
		Role: domain.RoleUser, IsActive: true,
		AvatarURL: "https://a/user-set.png", FullName: "User Chosen",
	})
	svc := NewService(Providers(Credentials{}, Credentials{}), repo, nil)

	u, err := svc.GetOrCreateUser(context.Background(), ProviderGoogle, "g-7",
		"ada@example.com", "ada", "https://a/provider.png", "Provider Name")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	if u.AvatarURL != "https://a/user-set.png" {
		t.Errorf("avatar overwritten on link: got %q, want user-set value preserved", u.AvatarURL)
	}
	if u.FullName != "User Chosen" {
		t.Errorf("full name overwritten on link: got %q, want user-set value preserved", u.FullName)
	}
	if u.OAuthProvider != ProviderGoogle || u.OAuthProviderID != "g-7" {
		t.Errorf("linkage not recorded: %+v", u)
	}
}

func TestGetOrCreateUserCreates(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(Providers(Credentials{}, Credentials{}), repo, nil)

	u, err := svc.GetOrCreateUser(context.Background(), ProviderGitHub, "42",
		"octo@example.com", "octo", "https://a/octo.png", "Octo Cat")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	if u.Username != "octo" || u.Email != "octo@example.com" {
		t.Errorf("user = %+v", u)
	}
	if u.PasswordHash != "" {
		t.Error("provider accounts have no local password")
	}
	if !u.IsActive || u.Role != domain.RoleUser {
		t.Errorf("defaults wrong: active=%v role=%q", u.IsActive, u.Role)
	}
}

func TestGetOrCreateUserFallbackUsername(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(Providers(Credentials{}, Credentials{}), repo, nil)

	u, err := svc.GetOrCreateUser(context.Background(), ProviderGoogle, "g-7",
		"x@example.com", "", "", "")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	if u.Username != "google_g-7" {
		t.Errorf("username = %q, want provider_providerID fallback", u.Username)
	}
}

func TestGetOrCreateUserUsernameCollision(t *testing.T) {
	repo := newMemRepo()
	repo.add(&domain.User{ID: "01", Email: "a@example.com", Username: "octo", PasswordHash: "x", Role: domain.RoleUser})
	repo.add(&domain.User{ID: "02", Email: "b@example.com", Username: "octo1", PasswordHash: "x", Role: domain.RoleUser})
	svc := NewService(Providers(Credentials{}, Credentials{}), repo, nil)

	u, err := svc.GetOrCreateUser(context.Background(), ProviderGitHub, "42",
		"octo@example.com", "octo", "", "")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	if u.Username != "octo2" {
		t.Errorf("username = %q, want octo2", u.Username)
	}
}

func TestHandleCallback(t *testing.T) {
	srv := fakeGitHub(t, "tok-1",
		map[string]interface{}{"id": 42, "login": "octo", "name": "Octo Cat"},
		[]map[string]interface{}{{"email": "octo@example.com", "primary": true}})
	defer srv.Close()
	repo := newMemRepo()
	svc := NewService(githubProviders(srv), repo, srv.Client())

	u, err := svc.HandleCallback(context.Background(), ProviderGitHub, "code-1")
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if u.Username != "octo" || u.OAuthProviderID != "42" {
		t.Errorf("user = %+v", u)
	}

	// A second callback for the same provider identity resolves to the same user.
	again, err := svc.HandleCallback(context.Background(), ProviderGitHub, "code-2")
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if again.ID != u.ID {
		t.Errorf("second callback created a new user: %q vs %q", again.ID, u.ID)
	}
}

func TestHandleCallbackExchangeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "access_token") {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
	}))
	defer srv.Close()
	providers := Providers(Credentials{}, Credentials{})
	p := providers[ProviderGitHub]
	p.TokenURL = srv.URL + "/login/oauth/access_token"
	providers[ProviderGitHub] = p
	svc := NewService(providers, newMemRepo(), srv.Client())

	if _, err := svc.HandleCallback(context.Background(), ProviderGitHub, "bad"); err != ErrExchangeFailed {
		t.Errorf("want ErrExchangeFailed, got %v", err)
	}
}
