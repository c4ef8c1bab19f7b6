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

// Package memory implements storage.Store without a database, adapted from
// the teacher's pkg/storage/memory: useful for handler tests (the corpus
// carries no Postgres mocking library) and as a single-process deployment
// backend.
package memory

import (
	"context"
	"sync"

	"github.com/dmrelay/dmrelay/pkg/storage"
)

// Store implements storage.Store with two map-backed sub-stores guarded by
// independent mutexes, mirroring the teacher's per-table-lock layout.
type Store struct {
	users   *userStore
	mailbox *mailboxStore
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users: &userStore{
			byID: make(map[string]*storage.User),
		},
		mailbox: &mailboxStore{
			inbound:  make(map[string][]*storage.Message),
			outbound: make(map[string][]*storage.Message),
		},
	}
}

func (s *Store) Users() storage.UserStore     { return s.users }
func (s *Store) Mailbox() storage.MailboxStore { return s.mailbox }

// Close is a no-op; there is no connection to release.
func (s *Store) Close() error { return nil }

// Ping always succeeds; there is no connection to probe.
func (s *Store) Ping(ctx context.Context) error { return nil }

// Stats reports a fixed single-conn snapshot, since there is no pool.
func (s *Store) Stats() storage.PoolStats {
	return storage.PoolStats{AcquiredConns: 0, IdleConns: 1, MaxConns: 1}
}

var _ storage.Store = (*Store)(nil)

type userStore struct {
	mu   sync.RWMutex
	byID map[string]*storage.User
}

func (u *userStore) Create(ctx context.Context, user *storage.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, exists := u.byID[user.ID]; exists {
		return forbiddenErr(user.ID)
	}

	cp := *user
	cp.PublicKey = append([]byte(nil), user.PublicKey...)
	u.byID[user.ID] = &cp
	return nil
}

func (u *userStore) Get(ctx context.Context, id string) (*storage.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	user, exists := u.byID[id]
	if !exists {
		return nil, notFoundErr(id)
	}
	cp := *user
	return &cp, nil
}

func (u *userStore) Exists(ctx context.Context, id string) (bool, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, exists := u.byID[id]
	return exists, nil
}

type mailboxStore struct {
	mu       sync.Mutex
	nextID   int64
	inbound  map[string][]*storage.Message
	outbound map[string][]*storage.Message
}

func (m *mailboxStore) SendMessage(ctx context.Context, senderID, recipientID string, content, senderWrappedKey, recipientWrappedKey []byte) (*storage.SentMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	inboundRow := &storage.Message{
		ID: m.nextID, UserID: recipientID,
		Content: append([]byte(nil), content...), WrappedKey: append([]byte(nil), recipientWrappedKey...),
	}
	m.inbound[recipientID] = append(m.inbound[recipientID], inboundRow)

	m.nextID++
	outboundRow := &storage.Message{
		ID: m.nextID, UserID: senderID,
		Content: append([]byte(nil), content...), WrappedKey: append([]byte(nil), senderWrappedKey...),
	}
	m.outbound[senderID] = append(m.outbound[senderID], outboundRow)

	return &storage.SentMessage{Inbound: inboundRow, Outbound: outboundRow}, nil
}

func (m *mailboxStore) InboundAfter(ctx context.Context, userID string, after int64, limit int) ([]*storage.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return filterAfter(m.inbound[userID], after, limit), nil
}

func (m *mailboxStore) OutboundAfter(ctx context.Context, userID string, after int64, limit int) ([]*storage.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return filterAfter(m.outbound[userID], after, limit), nil
}

func filterAfter(rows []*storage.Message, after int64, limit int) []*storage.Message {
	out := make([]*storage.Message, 0, limit)
	for _, row := range rows {
		if row.ID <= after {
			continue
		}
		out = append(out, row)
		if len(out) == limit {
			break
		}
	}
	return out
}
