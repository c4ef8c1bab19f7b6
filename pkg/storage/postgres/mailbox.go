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

// MailboxStore implements storage.MailboxStore for PostgreSQL.
//
// SendMessage writes into both mailboxes inside one transaction, matching
// the reference server's behavior: a message exists for the recipient to
// read (inbound) and for the sender's own device to reconcile against its
// local copy (outbound), sharing one ciphertext and wrapped key.
type MailboxStore struct {
	db *pgxpool.Pool
}

// SendMessage atomically inserts the inbound and outbound rows for a
// single send, returning both with their server-assigned ids. The two
// rows carry distinct wrapped keys: the recipient's copy is wrapped under
// the recipient's public key, the sender's copy under the sender's own.
func (s *MailboxStore) SendMessage(ctx context.Context, senderID, recipientID string, content, senderWrappedKey, recipientWrappedKey []byte) (*storage.SentMessage, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inbound := &storage.Message{UserID: recipientID, Content: content, WrappedKey: recipientWrappedKey}
	err = tx.QueryRow(ctx, `
		INSERT INTO inbound_messages (user_id, content, wrapped_key)
		VALUES ($1, $2, $3)
		RETURNING id
	`, recipientID, content, recipientWrappedKey).Scan(&inbound.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert inbound message: %w", err)
	}

	outbound := &storage.Message{UserID: senderID, Content: content, WrappedKey: senderWrappedKey}
	err = tx.QueryRow(ctx, `
		INSERT INTO outbound_messages (user_id, content, wrapped_key)
		VALUES ($1, $2, $3)
		RETURNING id
	`, senderID, content, senderWrappedKey).Scan(&outbound.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert outbound message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit message send: %w", err)
	}

	return &storage.SentMessage{Inbound: inbound, Outbound: outbound}, nil
}

// InboundAfter returns inbound rows for userID with id > after.
func (s *MailboxStore) InboundAfter(ctx context.Context, userID string, after int64, limit int) ([]*storage.Message, error) {
	return s.messagesAfter(ctx, "inbound_messages", userID, after, limit)
}

// OutboundAfter returns outbound rows for userID with id > after.
func (s *MailboxStore) OutboundAfter(ctx context.Context, userID string, after int64, limit int) ([]*storage.Message, error) {
	return s.messagesAfter(ctx, "outbound_messages", userID, after, limit)
}

func (s *MailboxStore) messagesAfter(ctx context.Context, table, userID string, after int64, limit int) ([]*storage.Message, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, content, wrapped_key
		FROM %s
		WHERE user_id = $1 AND id > $2
		ORDER BY id ASC
		LIMIT $3
	`, table)

	rows, err := s.db.Query(ctx, query, userID, after, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var messages []*storage.Message
	for rows.Next() {
		var m storage.Message
		if err := rows.Scan(&m.ID, &m.UserID, &m.Content, &m.WrappedKey); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", table, err)
	}

	return messages, nil
}
