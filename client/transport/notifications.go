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

package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmrelay/dmrelay/wire"
)

const dialTimeout = 30 * time.Second

// NotificationStream is the client side of the server's push channel
// (spec.md §6 "POST /notifications"), grounded on
// original_source/crates/client/src/notifications.rs's notification_handler
// and the teacher's pkg/agent/transport/websocket client.
type NotificationStream struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

// DialNotifications upgrades to the push channel at baseURL+"/notifications"
// (baseURL using ws(s):// or http(s)://, either is normalized), presenting
// the session cookie captured by a prior Client.Login call.
func DialNotifications(ctx context.Context, baseURL string, c *Client) (*NotificationStream, error) {
	wsURL, err := toWebsocketURL(baseURL + "/notifications")
	if err != nil {
		return nil, fmt.Errorf("transport: notifications url: %w", err)
	}

	header := http.Header{}
	if c != nil && c.http.Jar != nil {
		parsed, err := url.Parse(c.baseURL)
		if err == nil {
			cookies := c.http.Jar.Cookies(parsed)
			if len(cookies) > 0 {
				pairs := make([]string, 0, len(cookies))
				for _, ck := range cookies {
					pairs = append(pairs, ck.Name+"="+ck.Value)
				}
				header.Set("Cookie", strings.Join(pairs, "; "))
			}
		}
	}

	dialer := &websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("transport: notifications dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("transport: notifications dial failed: %w", err)
	}

	return &NotificationStream{conn: conn}, nil
}

// Read blocks until the next notification frame arrives, the connection is
// closed, or the given context is done.
func (s *NotificationStream) Read(ctx context.Context) (wire.NotificationFrame, error) {
	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline {
		_ = s.conn.SetReadDeadline(deadline)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	var frame wire.NotificationFrame
	if err := s.conn.ReadJSON(&frame); err != nil {
		return wire.NotificationFrame{}, fmt.Errorf("transport: read notification: %w", err)
	}
	return frame, nil
}

// Close closes the underlying websocket connection.
func (s *NotificationStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}

// toWebsocketURL rewrites an http(s):// base URL to its ws(s):// equivalent.
func toWebsocketURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	}
	return parsed.String(), nil
}
