package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resumehub/resumehub/internal/shared"
)

// Repository defines persistence operations for users and their
// federated identity links.
type Repository interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUserByID(ctx context.Context, id int64) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdateUser(ctx context.Context, u User) (User, error)
	TouchLastLogin(ctx context.Context, id int64) (User, error)
	DeleteUser(ctx context.Context, id int64) error

	FindFederated(ctx context.Context, provider, providerID string) (FederatedIdentity, error)
	CreateFederated(ctx context.Context, link FederatedIdentity) (FederatedIdentity, error)
	UpdateFederatedTokens(ctx context.Context, id int64, accessToken, refreshToken string) error
	ListFederatedByUser(ctx context.Context, userID int64) ([]FederatedIdentity, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `user_id, first_name, last_name, email, email_verified, password_hash, created_at, updated_at, last_login_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.EmailVerified, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt)
	return u, err
}

// CreateUser inserts a user. The database assigns id and timestamps;
// the unique email constraint is the source of truth for duplicates.
func (r *PGRepository) CreateUser(ctx context.Context, u User) (User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (first_name, last_name, email, email_verified, password_hash)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		u.FirstName, u.LastName, u.Email, u.EmailVerified, u.PasswordHash)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, shared.ErrDuplicateEmail
		}
		return User{}, err
	}
	return created, nil
}

// GetUserByID fetches a user by primary key.
func (r *PGRepository) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// GetUserByEmail fetches a user by email.
func (r *PGRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// UpdateUser persists mutable profile fields and bumps updated_at.
func (r *PGRepository) UpdateUser(ctx context.Context, u User) (User, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE users
		 SET first_name = $2, last_name = $3, email = $4, email_verified = $5, password_hash = $6, updated_at = now()
		 WHERE user_id = $1
		 RETURNING `+userColumns,
		u.ID, u.FirstName, u.LastName, u.Email, u.EmailVerified, u.PasswordHash)
	updated, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, shared.ErrDuplicateEmail
		}
		return User{}, err
	}
	return updated, nil
}

// TouchLastLogin stamps last_login_at and returns the fresh record.
func (r *PGRepository) TouchLastLogin(ctx context.Context, id int64) (User, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE users SET last_login_at = now(), updated_at = now() WHERE user_id = $1 RETURNING `+userColumns, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// DeleteUser removes a user row; federated links cascade in the schema.
func (r *PGRepository) DeleteUser(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE user_id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const federatedColumns = `id, user_id, provider, provider_id, access_token, refresh_token`

func scanFederated(row pgx.Row) (FederatedIdentity, error) {
	var link FederatedIdentity
	err := row.Scan(&link.ID, &link.UserID, &link.Provider, &link.ProviderID, &link.AccessToken, &link.RefreshToken)
	return link, err
}

// FindFederated resolves a link by its unique (provider, provider_id) pair.
func (r *PGRepository) FindFederated(ctx context.Context, provider, providerID string) (FederatedIdentity, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+federatedColumns+` FROM user_auth_providers WHERE provider = $1 AND provider_id = $2`,
		provider, providerID)
	link, err := scanFederated(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FederatedIdentity{}, shared.ErrNotFound
		}
		return FederatedIdentity{}, err
	}
	return link, nil
}

// CreateFederated inserts a new provider link for a user.
func (r *PGRepository) CreateFederated(ctx context.Context, link FederatedIdentity) (FederatedIdentity, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO user_auth_providers (user_id, provider, provider_id, access_token, refresh_token)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+federatedColumns,
		link.UserID, link.Provider, link.ProviderID, link.AccessToken, link.RefreshToken)
	created, err := scanFederated(row)
	if err != nil {
		return FederatedIdentity{}, err
	}
	return created, nil
}

// UpdateFederatedTokens refreshes the stored token material on a link.
func (r *PGRepository) UpdateFederatedTokens(ctx context.Context, id int64, accessToken, refreshToken string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE user_auth_providers SET access_token = $2, refresh_token = $3 WHERE id = $1`,
		id, accessToken, refreshToken)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListFederatedByUser returns every provider link owned by a user.
func (r *PGRepository) ListFederatedByUser(ctx context.Context, userID int64) ([]FederatedIdentity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+federatedColumns+` FROM user_auth_providers WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var links []FederatedIdentity
	for rows.Next() {
		link, err := scanFederated(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return links, nil
}

var _ Repository = (*PGRepository)(nil)
