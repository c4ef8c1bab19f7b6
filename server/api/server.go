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

// Package api implements the relay server's HTTP surface: authentication,
// user lookup, message send/sync, and the notifications websocket,
// grounded on the teacher's pkg/agent/transport/{http,websocket} servers.
package api

import (
	"context"
	"net/http"

	"github.com/dmrelay/dmrelay/internal/logger"
	"github.com/dmrelay/dmrelay/pkg/storage"
	"github.com/dmrelay/dmrelay/server/pushqueue"
	"github.com/dmrelay/dmrelay/server/sessioncookie"
	"github.com/dmrelay/dmrelay/server/usercache"
)

// Server holds the shared state across requests (SPEC_FULL.md §6): the
// connection pool (via Store), the user cache, and the push queue map.
type Server struct {
	store    storage.Store
	cache    *usercache.Cache
	queues   *pushqueue.Registry
	cookies  *sessioncookie.Codec
	log      logger.Logger
	argon2   argon2Params
	shutdown chan struct{}
}

// argon2Params mirrors config.Argon2Config; kept narrow here so api does
// not import the full config package.
type argon2Params struct {
	TimeCost    uint32
	MemoryKiB   uint32
	Parallelism uint8
	KeyLength   uint32
	SaltLength  uint32
}

// Options configures a new Server.
type Options struct {
	Store         storage.Store
	Cookies       *sessioncookie.Codec
	Logger        logger.Logger
	UserCacheSize int
	Argon2TimeCost, Argon2MemoryKiB uint32
	Argon2Parallelism               uint8
	Argon2KeyLength, Argon2SaltLength uint32
}

// New constructs a Server ready to be mounted on an http.ServeMux.
func New(opts Options) *Server {
	return &Server{
		store:   opts.Store,
		cache:   usercache.New(opts.UserCacheSize),
		queues:  pushqueue.NewRegistry(),
		cookies: opts.Cookies,
		log:     opts.Logger,
		argon2: argon2Params{
			TimeCost:    opts.Argon2TimeCost,
			MemoryKiB:   opts.Argon2MemoryKiB,
			Parallelism: opts.Argon2Parallelism,
			KeyLength:   opts.Argon2KeyLength,
			SaltLength:  opts.Argon2SaltLength,
		},
		shutdown: make(chan struct{}),
	}
}

// Mux builds the /api route tree.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/hello", s.handleHello)
	mux.HandleFunc("/api/users", s.handleUsers)
	mux.HandleFunc("/api/login", s.handleLogin)
	mux.HandleFunc("/api/logout", s.handleLogout)
	mux.HandleFunc("/api/users/", s.handleGetUser)
	mux.HandleFunc("/api/messages", s.handleMessages)
	mux.HandleFunc("/api/notifications", s.handleNotifications)
	return mux
}

// Shutdown signals every open notification loop to exit by closing the
// shutdown channel. It is not guarded against repeat calls: a second call
// panics on the already-closed channel. The server binary calls it once,
// before http.Server.Shutdown.
func (s *Server) Shutdown(_ context.Context) {
	close(s.shutdown)
}

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodHead && r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}
