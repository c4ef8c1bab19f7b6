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

// Package postgres integration tests run only against a real database,
// named by DMRELAY_TEST_DATABASE_URL. They are skipped otherwise, since
// the driver speaks the wire protocol directly and cannot be faked without
// a server on the other end.
package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmrelay/dmrelay/internal/relayerr"
	"github.com/dmrelay/dmrelay/pkg/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DMRELAY_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("DMRELAY_TEST_DATABASE_URL not set; skipping postgres integration test")
	}

	store, err := NewStoreFromDSN(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestUserCreateGetExists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id := "user-" + uuid.NewString()
	user := &storage.User{ID: id, DisplayName: "Ada", PasswordHash: "hash", PublicKey: []byte("der-bytes")}

	require.NoError(t, store.Users().Create(ctx, user))

	exists, err := store.Users().Exists(ctx, id)
	require.NoError(t, err)
	require.True(t, exists)

	got, err := store.Users().Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, user.DisplayName, got.DisplayName)
	require.Equal(t, user.PublicKey, got.PublicKey)
}

func TestUserCreateDuplicateIsForbidden(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id := "dup-" + uuid.NewString()
	user := &storage.User{ID: id, DisplayName: "Ada", PasswordHash: "hash", PublicKey: []byte("der")}
	require.NoError(t, store.Users().Create(ctx, user))

	err := store.Users().Create(ctx, user)
	require.Error(t, err)
	require.True(t, errors.Is(err, relayerr.ErrForbidden))
}

func TestUserGetMissingIsNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Users().Get(ctx, "does-not-exist-"+uuid.NewString())
	require.Error(t, err)
	require.True(t, errors.Is(err, relayerr.ErrNotFound))
}

func TestSendMessageDualWrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sender := "sender-" + uuid.NewString()
	recipient := "recipient-" + uuid.NewString()
	for _, id := range []string{sender, recipient} {
		require.NoError(t, store.Users().Create(ctx, &storage.User{ID: id, DisplayName: id, PasswordHash: "h", PublicKey: []byte("k")}))
	}

	sent, err := store.Mailbox().SendMessage(ctx, sender, recipient, []byte("ciphertext"), []byte("sender-wrapped"), []byte("recipient-wrapped"))
	require.NoError(t, err)
	require.Equal(t, []byte("ciphertext"), sent.Inbound.Content)
	require.Equal(t, []byte("ciphertext"), sent.Outbound.Content)
	require.Equal(t, recipient, sent.Inbound.UserID)
	require.Equal(t, sender, sent.Outbound.UserID)
	require.Equal(t, []byte("recipient-wrapped"), sent.Inbound.WrappedKey)
	require.Equal(t, []byte("sender-wrapped"), sent.Outbound.WrappedKey)

	inbound, err := store.Mailbox().InboundAfter(ctx, recipient, 0, 10)
	require.NoError(t, err)
	require.Len(t, inbound, 1)
	require.Equal(t, sent.Inbound.ID, inbound[0].ID)

	outbound, err := store.Mailbox().OutboundAfter(ctx, sender, 0, 10)
	require.NoError(t, err)
	require.Len(t, outbound, 1)
	require.Equal(t, sent.Outbound.ID, outbound[0].ID)
}
