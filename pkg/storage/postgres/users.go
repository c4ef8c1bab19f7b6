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
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmrelay/dmrelay/internal/relayerr"
	"github.com/dmrelay/dmrelay/pkg/storage"
)

// UserStore implements storage.UserStore for PostgreSQL.
type UserStore struct {
	db *pgxpool.Pool
}

// Create registers a new user. Returns relayerr.ErrForbidden, matching
// spec.md's register contract, if the id is already taken.
func (s *UserStore) Create(ctx context.Context, user *storage.User) error {
	query := `
		INSERT INTO users (id, display_name, password_hash, public_key)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.db.Exec(ctx, query, user.ID, user.DisplayName, user.PasswordHash, user.PublicKey)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("create user %s: %w", user.ID, relayerr.ErrForbidden)
		}
		return fmt.Errorf("create user %s: %w", user.ID, err)
	}

	return nil
}

// Get retrieves a user by id.
func (s *UserStore) Get(ctx context.Context, id string) (*storage.User, error) {
	query := `
		SELECT id, display_name, password_hash, public_key
		FROM users
		WHERE id = $1
	`

	var user storage.User
	err := s.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.DisplayName,
		&user.PasswordHash,
		&user.PublicKey,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get user %s: %w", id, relayerr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}

	return &user, nil
}

// Exists reports whether a user id is already registered.
func (s *UserStore) Exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`

	var exists bool
	if err := s.db.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}

	return exists, nil
}
