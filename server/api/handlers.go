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

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmrelay/dmrelay/crypto"
	"github.com/dmrelay/dmrelay/internal/logger"
	"github.com/dmrelay/dmrelay/internal/relayerr"
	"github.com/dmrelay/dmrelay/pkg/storage"
	"github.com/dmrelay/dmrelay/server/pushqueue"
	"github.com/dmrelay/dmrelay/wire"
)

const maxSyncPage = 256

// writeJSON marshals v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.ErrorMsg("failed to encode response", logger.Error(err))
	}
}

// writeError maps err to a RelayError's HTTP status and body, falling back
// to ErrInternal when err carries no RelayError in its chain (spec.md §7:
// the server never reveals internal detail beyond the mapped message).
func writeError(w http.ResponseWriter, log logger.Logger, err error) {
	var relayErr *relayerr.RelayError
	if !errors.As(err, &relayErr) {
		log.Error("unmapped handler error", logger.Error(err))
		relayErr = relayerr.ErrInternal
	}
	status := relayErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, wire.ErrorResponse{Error: relayErr.Message})
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", relayerr.ErrTransport)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode body: %w", relayerr.ErrProtocolViolation)
	}
	return nil
}

// handleUsers handles POST /api/users (registration, spec.md §6).
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, nil)
		return
	}

	var req wire.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	if req.ID == "" || req.Password == "" || len(req.PublicKey) == 0 {
		writeError(w, s.log, fmt.Errorf("register: %w", relayerr.ErrProtocolViolation))
		return
	}

	hash, err := crypto.HashPassword(req.Password, crypto.PasswordParams{
		TimeCost:    s.argon2.TimeCost,
		MemoryKiB:   s.argon2.MemoryKiB,
		Parallelism: s.argon2.Parallelism,
		KeyLength:   s.argon2.KeyLength,
		SaltLength:  s.argon2.SaltLength,
	})
	if err != nil {
		writeError(w, s.log, fmt.Errorf("hash password: %w", relayerr.ErrCrypto))
		return
	}

	user := &storage.User{
		ID:           req.ID,
		DisplayName:  req.Name,
		PasswordHash: hash,
		PublicKey:    req.PublicKey,
	}
	if err := s.store.Users().Create(r.Context(), user); err != nil {
		writeError(w, s.log, err)
		return
	}

	s.cache.Put(user)
	writeJSON(w, http.StatusCreated, wire.UserProfile{ID: user.ID, Name: user.DisplayName, PublicKey: user.PublicKey})
}

// handleLogin handles POST /api/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, nil)
		return
	}

	var req wire.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}

	user, err := s.lookupUser(r.Context(), req.Username)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if !crypto.VerifyPassword(req.Password, user.PasswordHash) {
		writeError(w, s.log, fmt.Errorf("login %s: %w", req.Username, relayerr.ErrUnauthorized))
		return
	}

	if err := s.cookies.Set(w, user.ID); err != nil {
		writeError(w, s.log, fmt.Errorf("set session cookie: %w", relayerr.ErrInternal))
		return
	}
	writeJSON(w, http.StatusOK, wire.UserProfile{ID: user.ID, Name: user.DisplayName, PublicKey: user.PublicKey})
}

// handleLogout handles POST /api/logout.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, nil)
		return
	}
	s.cookies.Clear(w)
	writeJSON(w, http.StatusOK, nil)
}

// handleGetUser handles GET /api/users/{id}.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, nil)
		return
	}
	if _, err := s.authenticate(r); err != nil {
		writeError(w, s.log, err)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/users/")
	if id == "" {
		writeError(w, s.log, fmt.Errorf("get user: %w", relayerr.ErrProtocolViolation))
		return
	}

	user, err := s.lookupUser(r.Context(), id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.UserProfile{ID: user.ID, Name: user.DisplayName, PublicKey: user.PublicKey})
}

// handleMessages handles POST /api/messages (send) and GET /api/messages
// (sync, spec.md §6's `after`/`out_after` high-water-mark pagination).
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSendMessage(w, r)
	case http.MethodGet:
		s.handleGetMessages(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, nil)
	}
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := s.authenticate(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	var req wire.SendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	if req.Recipient == "" || len(req.Contents) == 0 {
		writeError(w, s.log, fmt.Errorf("send message: %w", relayerr.ErrProtocolViolation))
		return
	}
	if _, err := s.lookupUser(r.Context(), req.Recipient); err != nil {
		writeError(w, s.log, err)
		return
	}

	sent, err := s.store.Mailbox().SendMessage(r.Context(), userID, req.Recipient, req.Contents, req.MySecretKey, req.RecipientSecretKey)
	if err != nil {
		writeError(w, s.log, fmt.Errorf("send message %s->%s: %w", userID, req.Recipient, relayerr.ErrStorage))
		return
	}

	s.queues.Enqueue(req.Recipient, &pushqueue.Notification{
		InboundID:  sent.Inbound.ID,
		Content:    sent.Inbound.Content,
		WrappedKey: sent.Inbound.WrappedKey,
	})

	writeJSON(w, http.StatusCreated, wire.MessageEntry{
		ID:        sent.Outbound.ID,
		Contents:  sent.Outbound.Content,
		SecretKey: sent.Outbound.WrappedKey,
	})
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	userID, err := s.authenticate(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	after, err := parseCursor(r.URL.Query().Get("after"))
	if err != nil {
		writeError(w, s.log, fmt.Errorf("parse after: %w", relayerr.ErrProtocolViolation))
		return
	}
	outAfter, err := parseCursor(r.URL.Query().Get("out_after"))
	if err != nil {
		writeError(w, s.log, fmt.Errorf("parse out_after: %w", relayerr.ErrProtocolViolation))
		return
	}

	inbound, err := s.store.Mailbox().InboundAfter(r.Context(), userID, after, maxSyncPage)
	if err != nil {
		writeError(w, s.log, fmt.Errorf("inbound sync: %w", relayerr.ErrStorage))
		return
	}
	outbound, err := s.store.Mailbox().OutboundAfter(r.Context(), userID, outAfter, maxSyncPage)
	if err != nil {
		writeError(w, s.log, fmt.Errorf("outbound sync: %w", relayerr.ErrStorage))
		return
	}

	resp := wire.GetMessagesResponse{
		Inbound:  toMessageEntries(inbound),
		Outbound: toMessageEntries(outbound),
	}
	writeJSON(w, http.StatusOK, resp)
}

func toMessageEntries(msgs []*storage.Message) []wire.MessageEntry {
	entries := make([]wire.MessageEntry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, wire.MessageEntry{ID: m.ID, Contents: m.Content, SecretKey: m.WrappedKey})
	}
	return entries
}

func parseCursor(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

// authenticate reads and verifies the session cookie, returning the
// session's user id.
func (s *Server) authenticate(r *http.Request) (string, error) {
	userID, err := s.cookies.Get(r)
	if err != nil {
		return "", fmt.Errorf("authenticate: %w", relayerr.ErrUnauthorized)
	}
	return userID, nil
}

// lookupUser consults the profile cache before falling back to storage
// (SPEC_FULL.md §6's user cache, an LRU, generalized from the teacher's
// session map pattern).
func (s *Server) lookupUser(ctx context.Context, id string) (*storage.User, error) {
	if user, ok := s.cache.Get(id); ok {
		return user, nil
	}

	user, err := s.store.Users().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup user %s: %w", id, err)
	}
	s.cache.Put(user)
	return user, nil
}
