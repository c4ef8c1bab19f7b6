// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmrelay/dmrelay/pkg/storage"
)

// Store implements storage.Store for PostgreSQL.
type Store struct {
	pool    *pgxpool.Pool
	users   *UserStore
	mailbox *MailboxStore
}

// Config holds PostgreSQL connection configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// MaxConns caps the pool size. The reference MessagIST server pins
	// this at 5; zero means "use the pgxpool default".
	MaxConns int32
}

// NewStore creates a new PostgreSQL store and verifies connectivity.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool:    pool,
		users:   &UserStore{db: pool},
		mailbox: &MailboxStore{db: pool},
	}, nil
}

// NewStoreFromDSN creates a store from a pre-built connection string (e.g.
// DATABASE_URL-style deployments or tests), applying Schema if the tables
// do not yet exist.
func NewStoreFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{
		pool:    pool,
		users:   &UserStore{db: pool},
		mailbox: &MailboxStore{db: pool},
	}, nil
}

// Users returns the user store.
func (s *Store) Users() storage.UserStore { return s.users }

// Mailbox returns the mailbox store.
func (s *Store) Mailbox() storage.MailboxStore { return s.mailbox }

// Close closes the database connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Stats reports connection pool utilization for health checks.
func (s *Store) Stats() storage.PoolStats {
	stat := s.pool.Stat()
	return storage.PoolStats{
		AcquiredConns: stat.AcquiredConns(),
		IdleConns:     stat.IdleConns(),
		MaxConns:      stat.MaxConns(),
	}
}

// Schema is the DDL that NewStoreFromDSN applies; NewStore does not apply
// it and expects the tables to exist already (see SPEC_FULL.md §4).
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    display_name  TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    public_key    BYTEA NOT NULL
);

CREATE TABLE IF NOT EXISTS inbound_messages (
    id          BIGSERIAL PRIMARY KEY,
    user_id     TEXT NOT NULL REFERENCES users(id),
    content     BYTEA NOT NULL,
    wrapped_key BYTEA NOT NULL
);

CREATE TABLE IF NOT EXISTS outbound_messages (
    id          BIGSERIAL PRIMARY KEY,
    user_id     TEXT NOT NULL REFERENCES users(id),
    content     BYTEA NOT NULL,
    wrapped_key BYTEA NOT NULL
);

CREATE INDEX IF NOT EXISTS inbound_messages_user_id_id_idx ON inbound_messages(user_id, id);
CREATE INDEX IF NOT EXISTS outbound_messages_user_id_id_idx ON outbound_messages(user_id, id);
`
