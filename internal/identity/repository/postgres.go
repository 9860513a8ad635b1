package repository

import (
	"context"
	"database/sql"
	"errors"

	"modelplane/authcore/internal/identity/domain"
)

// PostgresUserRepo implements UserRepo on the users table.
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo returns a user repository backed by db.
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

func (r *PostgresUserRepo) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.Name, u.Role, string(u.Status), u.CreatedAt, u.UpdatedAt)
	return err
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, email, name, role, status, created_at, updated_at
		FROM users WHERE id = $1`, id))
}

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, email, name, role, status, created_at, updated_at
		FROM users WHERE email = $1`, email))
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u      domain.User
		status string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &status, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Status = domain.UserStatus(status)
	return &u, nil
}

// PostgresIdentityRepo implements IdentityRepo on the identities table.
type PostgresIdentityRepo struct {
	db *sql.DB
}

// NewPostgresIdentityRepo returns an identity repository backed by db.
func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

func (r *PostgresIdentityRepo) Create(ctx context.Context, i *domain.Identity) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO identities (id, user_id, provider, provider_id, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		i.ID, i.UserID, string(i.Provider), i.ProviderID, i.PasswordHash, i.CreatedAt)
	return err
}

func (r *PostgresIdentityRepo) GetByUserAndProvider(ctx context.Context, userID string, provider domain.Provider) (*domain.Identity, error) {
	var (
		i    domain.Identity
		prov string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, provider, provider_id, password_hash, created_at
		FROM identities WHERE user_id = $1 AND provider = $2`,
		userID, string(provider)).
		Scan(&i.ID, &i.UserID, &prov, &i.ProviderID, &i.PasswordHash, &i.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	i.Provider = domain.Provider(prov)
	return &i, nil
}

var (
	_ UserRepo     = (*PostgresUserRepo)(nil)
	_ IdentityRepo = (*PostgresIdentityRepo)(nil)
)
