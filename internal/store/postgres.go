package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/open-sun/software/internal/apperr"
	"github.com/open-sun/software/internal/models"
)

// PostgresStore handles users, water quality and fish rows in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id         BIGSERIAL    PRIMARY KEY,
		username   VARCHAR(100) UNIQUE NOT NULL,
		password   VARCHAR(2048) NOT NULL,
		role       VARCHAR(100) NOT NULL,
		created_at TIMESTAMPTZ  DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS water_quality_data (
		id                     BIGSERIAL PRIMARY KEY,
		province               VARCHAR(255),
		river_basin            VARCHAR(255),
		section_name           VARCHAR(255),
		monitoring_time        VARCHAR(255),
		water_quality_category VARCHAR(255),
		temperature            DOUBLE PRECISION,
		ph                     DOUBLE PRECISION,
		dissolved_oxygen       DOUBLE PRECISION,
		conductivity           DOUBLE PRECISION,
		turbidity              DOUBLE PRECISION,
		permanganate_index     DOUBLE PRECISION,
		ammonia_nitrogen       DOUBLE PRECISION,
		total_phosphorus       DOUBLE PRECISION,
		total_nitrogen         DOUBLE PRECISION,
		chlorophyll_a          DOUBLE PRECISION,
		algae_density          DOUBLE PRECISION,
		site_status            VARCHAR(255)
	);
	CREATE INDEX IF NOT EXISTS idx_water_site ON water_quality_data(province, river_basin, section_name);
	CREATE TABLE IF NOT EXISTS fish_data (
		id      BIGSERIAL PRIMARY KEY,
		species VARCHAR(100) NOT NULL,
		weight  DOUBLE PRECISION NOT NULL,
		length1 DOUBLE PRECISION,
		length2 DOUBLE PRECISION,
		length3 DOUBLE PRECISION,
		height  DOUBLE PRECISION,
		width   DOUBLE PRECISION
	)
`

// Migrate creates the tables. With reset set the tables are dropped
// first, so every start begins from the CSV bulk load.
func (s *PostgresStore) Migrate(ctx context.Context, reset bool) error {
	if reset {
		if _, err := s.pool.Exec(ctx, `DROP TABLE IF EXISTS users, water_quality_data, fish_data`); err != nil {
			return fmt.Errorf("drop tables: %w", err)
		}
	}
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, fn)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func notFoundOr(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.New(apperr.NotFound, what+" not found")
	}
	return err
}

// ── users ───────────────────────────────────────────────────

func (s *PostgresStore) CreateUser(ctx context.Context, username, hashedPassword, role string) (*models.User, error) {
	var u models.User
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`INSERT INTO users (username, password, role)
			 VALUES ($1, $2, $3)
			 RETURNING id, username, role, created_at`,
			username, hashedPassword, role,
		).Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.New(apperr.Conflict, "username already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password, role, created_at FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username, &u.Password, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err, "user")
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password, role, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.Password, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err, "user")
	}
	return &u, nil
}

// ListUsers returns users with the given role, or every user when role is empty.
func (s *PostgresStore) ListUsers(ctx context.Context, role string) ([]models.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, username, password, role, created_at FROM users
		 WHERE $1 = '' OR role = $1
		 ORDER BY id`, role,
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Password, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) UpdateUserRole(ctx context.Context, id int64, role string) error {
	return s.execOne(ctx, "user", `UPDATE users SET role = $2 WHERE id = $1`, id, role)
}

func (s *PostgresStore) UpdatePassword(ctx context.Context, id int64, hashedPassword string) error {
	return s.execOne(ctx, "user", `UPDATE users SET password = $2 WHERE id = $1`, id, hashedPassword)
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id int64) error {
	return s.execOne(ctx, "user", `DELETE FROM users WHERE id = $1`, id)
}

// execOne runs a single-row write in a transaction and reports NotFound
// when no row matched.
func (s *PostgresStore) execOne(ctx context.Context, what, sql string, args ...any) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("%s write: %w", what, err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.New(apperr.NotFound, what+" not found")
		}
		return nil
	})
}
