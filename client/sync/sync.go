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

// Package sync drives the client's cold-start sync and live-notification
// loop (spec.md §4.5), grounded on app.rs's sync_database/add_message and
// notifications.rs's notification_handler, generalized out of the
// reference's TUI event loop into a standalone, UI-agnostic driver.
package sync

import (
	"context"
	"crypto/rsa"
	"fmt"

	"github.com/dmrelay/dmrelay/client/pipeline"
	"github.com/dmrelay/dmrelay/client/session"
	"github.com/dmrelay/dmrelay/client/store"
	"github.com/dmrelay/dmrelay/client/transport"
	"github.com/dmrelay/dmrelay/internal/logger"
)

// Loop owns the cold-start sync and live push-channel reconnection for a
// single logged-in identity.
type Loop struct {
	selfID  string
	privKey *rsa.PrivateKey
	client  *transport.Client
	store   *store.Store
	machine *session.Machine
	log     logger.Logger

	// Delivered receives every message persisted by the receive path, for
	// a UI (or any other consumer) to pick up. The caller owns draining
	// it; Loop only ever sends, never closes it mid-run.
	Delivered chan store.Message
}

// New builds a Loop for the given logged-in identity.
func New(selfID string, privKey *rsa.PrivateKey, client *transport.Client, st *store.Store, machine *session.Machine, log logger.Logger) *Loop {
	return &Loop{
		selfID:    selfID,
		privKey:   privKey,
		client:    client,
		store:     st,
		machine:   machine,
		log:       log,
		Delivered: make(chan store.Message, 64),
	}
}

// ColdStartSync executes spec.md §4.5's cold-start sync: compute the
// local high-water marks, fetch everything newer from the server, and
// run each entry through the receive path. On success the machine moves
// Authenticated -> Synced; a machine already in Synced stays there.
func (l *Loop) ColdStartSync(ctx context.Context) error {
	lastInbound := l.store.MaxServerIDForRole(l.selfID, store.RoleReceiver)
	lastOutbound := l.store.MaxServerIDForRole(l.selfID, store.RoleSender)

	resp, err := l.client.GetMessages(ctx, lastInbound, lastOutbound)
	if err != nil {
		return fmt.Errorf("sync: fetch messages: %w", err)
	}

	for _, entry := range resp.Inbound {
		if err := l.processEntry(ctx, entry.ID, entry.Contents, entry.SecretKey, conversationBySender); err != nil {
			l.log.Error("failed to process inbound sync entry", logger.Error(err))
		}
	}
	for _, entry := range resp.Outbound {
		if err := l.processEntry(ctx, entry.ID, entry.Contents, entry.SecretKey, conversationByReceiver); err != nil {
			l.log.Error("failed to process outbound sync entry", logger.Error(err))
		}
	}

	if l.machine.Current() == session.Synced {
		return nil
	}
	return l.machine.Transition(session.Synced)
}

// conversationSide picks which party of a decrypted MessageData names the
// local conversation bucket a mailbox entry belongs under (spec.md §4.5
// step 3: "outbound entries are recorded under the recipient's
// conversation, inbound under the sender's").
type conversationSide func(pipeline.MessageData) string

func conversationBySender(m pipeline.MessageData) string   { return m.SenderID }
func conversationByReceiver(m pipeline.MessageData) string { return m.ReceiverID }

// processEntry runs spec.md §4.4's full receive path for one mailbox
// entry and records it locally, including idempotency (skip if the
// server id is already stored) and contact auto-discovery.
func (l *Loop) processEntry(ctx context.Context, serverID int64, payload, wrappedKey []byte, side conversationSide) error {
	received, ok := pipeline.ReceiveEntry(l.log, pipeline.Inbound{ServerID: serverID, Payload: payload, WrappedKey: wrappedKey}, l.privKey)
	if !ok {
		return nil
	}

	conversationID := side(received.Data)

	if err := l.ensureContact(ctx, conversationID); err != nil {
		l.log.Error("failed to discover contact", logger.String("contact_id", conversationID), logger.Error(err))
	}

	if received.Data.SenderID != l.selfID {
		if existing, err := l.store.ListMessagesByConversation(received.Data.SenderID); err == nil {
			var maxObserved int64
			for _, m := range existing {
				if m.SenderID == received.Data.SenderID && m.SentCounter > maxObserved {
					maxObserved = m.SentCounter
				}
			}
			pipeline.CheckCounter(l.log, received.Data.SenderID, received.Data.SentCounter, maxObserved)
		}
	}

	row := store.Message{
		SenderID:       received.Data.SenderID,
		ReceiverID:     received.Data.ReceiverID,
		Timestamp:      received.Data.Timestamp,
		Content:        received.Data.Content,
		SymmetricKey:   received.SymmetricKey,
		SentCounter:    received.Data.SentCounter,
		ReceiveCounter: received.Data.ReceiveCounter,
		ServerID:       serverID,
	}

	if l.alreadyStored(conversationID, serverID) {
		return nil
	}

	id, err := l.store.CreateMessage(row)
	if err != nil {
		return fmt.Errorf("persist message: %w", err)
	}
	row.ID = id

	select {
	case l.Delivered <- row:
	default:
		l.log.Warn("delivered-message channel full, dropping UI notification", logger.Any("server_id", serverID))
	}
	return nil
}

// alreadyStored implements spec.md §4.4 receive-path step 4's idempotency
// check: skip insertion if a row with the same server id already exists.
func (l *Loop) alreadyStored(conversationID string, serverID int64) bool {
	existing, err := l.store.ListMessagesByConversation(conversationID)
	if err != nil {
		return false
	}
	for _, m := range existing {
		if m.ServerID == serverID {
			return true
		}
	}
	return false
}

// ensureContact implements spec.md §4.4 step 5: if no local contact
// matches id, fetch its public profile and add a contact row, grounded
// on app.rs's add_message's get_user-then-create_contact sequence.
func (l *Loop) ensureContact(ctx context.Context, id string) error {
	if id == l.selfID {
		return nil
	}
	_, ok, err := l.store.GetContact(id)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	profile, err := l.client.GetUser(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch profile for new contact %s: %w", id, err)
	}
	return l.store.CreateContact(store.Contact{ID: profile.ID, DisplayName: profile.Name, PublicKey: profile.PublicKey})
}
