// Package service implements the account session core: registration, password
// authentication, token issuance, refresh, and caller resolution.
package service

import (
	"context"
	"errors"
	"time"

	"account-platform/backend/internal/platform/id"
	"account-platform/backend/internal/security"
	"account-platform/backend/internal/user/domain"
)

// Sentinel errors for the auth service; transport layers map them to codes.
var (
	ErrAlreadyExists = errors.New("email or username already registered")
	// ErrInvalidCredentials covers unknown username, missing local password,
	// and wrong password alike. Deliberately unified so responses cannot be
	// used as an account-existence oracle.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is inactive")
	ErrInvalidToken       = security.ErrInvalidToken
)

// TokenPair is the result of issuing a session.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string // always "bearer"
	ExpiresAt    time.Time
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	Create(ctx context.Context, u *domain.User) error
	UpdateRefreshToken(ctx context.Context, id, token string) error
}

// AuthService implements register, login, session issuance, refresh, and
// access-token resolution. It is the only writer of password hashes and
// refresh tokens.
type AuthService struct {
	repo   UserRepo
	hasher *security.Hasher
	tokens *security.TokenProvider
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(repo UserRepo, hasher *security.Hasher, tokens *security.TokenProvider) *AuthService {
	return &AuthService{repo: repo, hasher: hasher, tokens: tokens}
}

// Register creates a local account with the given credentials. role may be
// empty, in which case the account defaults to the user role; the admin
// bootstrap passes RoleAdmin. Email and username are checked for conflicts in
// a single query so neither can slip through while the other is verified.
// The plaintext password never leaves this function.
func (s *AuthService) Register(ctx context.Context, email, username, password string, role domain.Role) (*domain.User, error) {
	exists, err := s.repo.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyExists
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	userID, err := id.NewID()
	if err != nil {
		return nil, err
	}
	if role == "" {
		role = domain.RoleUser
	}
	now := time.Now().UTC()
	u := &domain.User{
		ID:           userID,
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate verifies a username/password pair. Every credential failure
// returns ErrInvalidCredentials, and the missing-user paths burn a bcrypt
// comparison so response timing does not reveal whether the account exists.
// ErrInactiveAccount is returned only after the password verifies: at that
// point the caller has proven ownership, so disclosing the disabled state
// leaks nothing about credential validity.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil || u.PasswordHash == "" {
		s.hasher.VerifyDummy(password)
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrInactiveAccount
	}
	return u, nil
}

// IssueSession mints an access/refresh token pair for the user and persists
// the refresh token, replacing any prior one. Concurrent sessions for the same
// user race on that write; last write wins and only its refresh token stays
// redeemable.
func (s *AuthService) IssueSession(ctx context.Context, u *domain.User) (*TokenPair, error) {
	access, expiresAt, err := s.tokens.IssueAccess(u.Username, string(u.Role))
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.tokens.IssueRefresh(u.Username)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateRefreshToken(ctx, u.ID, refresh); err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresAt:    expiresAt,
	}, nil
}

// Refresh exchanges a refresh token for a new access token. Beyond signature
// and expiry, the presented token must exactly equal the user's stored refresh
// token, so a superseded token is rejected even while cryptographically valid.
// The refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return "", ErrInvalidToken
	}
	u, err := s.repo.GetByUsername(ctx, claims.Subject)
	if err != nil {
		return "", err
	}
	if u == nil || !security.TokensEqual(refreshToken, u.RefreshToken) {
		return "", ErrInvalidToken
	}
	if !u.IsActive {
		return "", ErrInactiveAccount
	}
	access, _, err := s.tokens.IssueAccess(u.Username, string(u.Role))
	if err != nil {
		return "", err
	}
	return access, nil
}

// Resolve verifies an access token and loads the user it names. The account's
// active flag is intentionally not re-checked here: an access token issued
// before deactivation stays usable until it expires.
func (s *AuthService) Resolve(ctx context.Context, accessToken string) (*domain.User, error) {
	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	u, err := s.repo.GetByUsername(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidToken
	}
	return u, nil
}
