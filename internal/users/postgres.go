package users

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/talentforge/talentforge-api/pkg/clients/postgres"
	apperr "github.com/talentforge/talentforge-api/pkg/errors"
	"github.com/talentforge/talentforge-api/pkg/models"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations, the signal a provisioning race loser sees.
const uniqueViolation = "23505"

// Schema is the users table DDL. Applied at startup by EnsureSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id               UUID PRIMARY KEY,
    email            TEXT NOT NULL UNIQUE,
    name             TEXT NOT NULL DEFAULT '',
    role             TEXT NOT NULL DEFAULT 'user',
    password_hash    TEXT NOT NULL DEFAULT '',
    external_subject TEXT UNIQUE,
    picture          TEXT NOT NULL DEFAULT '',
    profile_complete BOOLEAN NOT NULL DEFAULT FALSE,
    providers        JSONB NOT NULL DEFAULT '[]',
    created_at       TIMESTAMPTZ NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS users_email_idx ON users (email);
`

const userColumns = `id, email, name, role, password_hash,
	COALESCE(external_subject, ''), picture, profile_complete, providers,
	created_at, updated_at`

// PostgresStore persists user records through the shared Postgres client.
type PostgresStore struct {
	client *postgres.Client
}

// NewPostgresStore wraps a connected client.
func NewPostgresStore(client *postgres.Client) *PostgresStore {
	return &PostgresStore{client: client}
}

// EnsureSchema creates the users table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.client.Exec(ctx, Schema); err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "users: applying schema")
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := s.client.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row, "users: user not found")
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.client.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row, "users: no user with that email")
}

func (s *PostgresStore) GetByExternalSubject(ctx context.Context, subject string) (*models.User, error) {
	row := s.client.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE external_subject = $1`, subject)
	return scanUser(row, "users: no user with that external subject")
}

func (s *PostgresStore) Create(ctx context.Context, user *models.User) error {
	providers, err := json.Marshal(user.Providers)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "users: encoding provider bindings")
	}

	_, err = s.client.Exec(ctx,
		`INSERT INTO users
			(id, email, name, role, password_hash, external_subject, picture,
			 profile_complete, providers, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11)`,
		user.ID, user.Email, user.Name, string(user.Role), user.PasswordHash,
		user.ExternalSubject, user.Picture, user.ProfileComplete, providers,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Wrap(err, apperr.CodeConflict, "users: email or external subject already registered")
		}
		return err
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, user *models.User) error {
	providers, err := json.Marshal(user.Providers)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "users: encoding provider bindings")
	}
	user.UpdatedAt = time.Now().UTC()

	tag, err := s.client.Exec(ctx,
		`UPDATE users SET
			email = $2, name = $3, role = $4, password_hash = $5,
			external_subject = NULLIF($6, ''), picture = $7,
			profile_complete = $8, providers = $9, updated_at = $10
		 WHERE id = $1`,
		user.ID, user.Email, user.Name, string(user.Role), user.PasswordHash,
		user.ExternalSubject, user.Picture, user.ProfileComplete, providers,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Wrap(err, apperr.CodeConflict, "users: email or external subject already registered")
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeNotFound, "users: user not found")
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.User, error) {
	rows, err := s.client.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		user, err := scanUserValues(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "users: iterating rows")
	}
	return out, nil
}

func scanUser(row pgx.Row, notFoundMsg string) (*models.User, error) {
	user, err := scanUserValues(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.CodeNotFound, notFoundMsg)
		}
		return nil, err
	}
	return user, nil
}

func scanUserValues(row pgx.Row) (*models.User, error) {
	var (
		user      models.User
		role      string
		providers []byte
	)
	err := row.Scan(&user.ID, &user.Email, &user.Name, &role,
		&user.PasswordHash, &user.ExternalSubject, &user.Picture,
		&user.ProfileComplete, &providers, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, apperr.Wrap(err, apperr.CodeInternal, "users: scanning row")
	}
	user.Role = models.Role(role)
	if len(providers) > 0 {
		if err := json.Unmarshal(providers, &user.Providers); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "users: decoding provider bindings")
		}
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
