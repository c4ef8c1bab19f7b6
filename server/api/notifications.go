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
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmrelay/dmrelay/internal/logger"
	"github.com/dmrelay/dmrelay/server/pushqueue"
	"github.com/dmrelay/dmrelay/wire"
)

// shutdownPollInterval bounds how long a blocked notification loop waits
// before re-checking the server's shutdown channel (spec.md §4.3: shutdown
// must be prompt but cooperative, not abrupt).
const shutdownPollInterval = 500 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleNotifications upgrades an authenticated connection to a websocket
// and streams NotificationFrame JSON text frames as messages are enqueued
// for this user (spec.md §4.3, §6). A second connection for the same user
// displaces the first per the registry's last-connect-wins rule.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	userID, err := s.authenticate(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", logger.String("user", userID), logger.Error(err))
		return
	}
	defer conn.Close()

	queue, replaced := s.queues.Register(userID)
	defer s.queues.Unregister(userID, queue)
	if replaced {
		s.log.Info("notification connection displaced previous", logger.String("user", userID), logger.String("connection", queue.ID))
	}

	s.serveNotificationLoop(conn, queue.C)
	s.log.Debug("notification connection closed", logger.String("user", userID), logger.String("connection", queue.ID))
}

// serveNotificationLoop drains notifications onto the connection until it
// closes or the server signals shutdown. The select receives directly from
// the shutdown channel and also wakes every shutdownPollInterval; a closed
// read side is noticed through the read goroutine below.
func (s *Server) serveNotificationLoop(conn *websocket.Conn, notifications <-chan *pushqueue.Notification) {
	closed := make(chan struct{})
	go s.drainClientReads(conn, closed)

	for {
		select {
		case <-closed:
			return
		case <-s.shutdown:
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			frame := wire.NotificationFrame{ID: n.InboundID, Contents: n.Content, SecretKey: n.WrappedKey}
			if err := conn.WriteJSON(frame); err != nil {
				s.log.Warn("notification write failed", logger.Error(err))
				return
			}
		case <-time.After(shutdownPollInterval):
			// Wake periodically so a shutdown signalled between
			// notifications is still noticed within the poll interval.
		}
	}
}

// drainClientReads discards any client-sent frames (the notifications
// socket is server-to-client only) and closes `closed` once the peer goes
// away, so serveNotificationLoop can stop promptly.
func (s *Server) drainClientReads(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
