package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"account-platform/backend/internal/user/domain"
)

const userColumns = `id, email, username, password_hash, role, oauth_provider,
	oauth_provider_id, avatar_url, full_name, is_active, refresh_token,
	created_at, updated_at`

// PostgresRepository persists users in Postgres. Email, username, and the
// provider pair are enforced unique by the schema; see internal/db/migrations.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByUsername returns the user with the given username, or nil if not found.
// The comparison is case-sensitive.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// GetByEmail returns the user with the given email, or nil if not found.
// The comparison is case-sensitive.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetByProvider returns the user linked to (provider, providerID), or nil if
// no user carries that linkage.
func (r *PostgresRepository) GetByProvider(ctx context.Context, provider, providerID string) (*domain.User, error) {
	return r.getOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE oauth_provider = $1 AND oauth_provider_id = $2`,
		provider, providerID)
}

// ExistsByEmailOrUsername reports whether any user already holds the email or
// the username. A single OR query keeps the registration conflict check in one
// round trip.
func (r *PostgresRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 OR username = $2)`,
		email, username).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Create persists the user. The user must have ID set; it is not assigned here.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		u.ID, u.Email, u.Username, nullable(u.PasswordHash), string(u.Role),
		nullable(u.OAuthProvider), nullable(u.OAuthProviderID),
		nullable(u.AvatarURL), nullable(u.FullName), u.IsActive,
		nullable(u.RefreshToken), u.CreatedAt, u.UpdatedAt)
	return err
}

// Update writes the user's mutable fields back to its row.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			email = $2, username = $3, password_hash = $4, role = $5,
			oauth_provider = $6, oauth_provider_id = $7, avatar_url = $8,
			full_name = $9, is_active = $10, refresh_token = $11, updated_at = $12
		WHERE id = $1`,
		u.ID, u.Email, u.Username, nullable(u.PasswordHash), string(u.Role),
		nullable(u.OAuthProvider), nullable(u.OAuthProviderID),
		nullable(u.AvatarURL), nullable(u.FullName), u.IsActive,
		nullable(u.RefreshToken), time.Now().UTC())
	return err
}

// UpdateRefreshToken stores token as the user's only live refresh token.
func (r *PostgresRepository) UpdateRefreshToken(ctx context.Context, id, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = $2, updated_at = $3 WHERE id = $1`,
		id, nullable(token), time.Now().UTC())
	return err
}

// UpdateRole sets the user's role.
func (r *PostgresRepository) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`,
		id, string(role), time.Now().UTC())
	return err
}

// List returns users ordered by id (creation order, ids are time-ordered).
func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...interface{}) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u                                  domain.User
		role                               string
		passwordHash, provider, providerID sql.NullString
		avatarURL, fullName, refreshToken  sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.Username, &passwordHash, &role,
		&provider, &providerID, &avatarURL, &fullName, &u.IsActive,
		&refreshToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	u.PasswordHash = passwordHash.String
	u.OAuthProvider = provider.String
	u.OAuthProviderID = providerID.String
	u.AvatarURL = avatarURL.String
	u.FullName = fullName.String
	u.RefreshToken = refreshToken.String
	return &u, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
