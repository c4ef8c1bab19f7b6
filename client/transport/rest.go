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

// Package transport implements the client's outbound connections to the
// relay: the REST API (grounded on original_source's client_handler.rs)
// and the notifications websocket (grounded on notifications.rs).
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"github.com/dmrelay/dmrelay/wire"
)

// Client is a REST client for the relay's /api surface, holding the
// session cookie across calls the way client_handler.rs's
// MessageISTClient holds a cookie-store-enabled reqwest::Client.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client for baseURL (e.g. "https://relay.example:8443/api").
// The returned client's cookie jar persists the session cookie set by
// Login across subsequent calls.
func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("transport: create cookie jar: %w", err)
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Jar: jar, Timeout: 30 * time.Second},
	}, nil
}

// NewWithHTTPClient builds a Client reusing a caller-supplied *http.Client
// (e.g. one configured with a pinned root certificate). The client must
// carry a cookie jar for session persistence to work.
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, http: httpClient}
}

// BaseURL returns the REST base URL this client was constructed with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CheckConnection performs HEAD /hello, matching spec.md §6's liveness probe.
func (c *Client) CheckConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/hello", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("transport: check connection: %w", err)
	}
	defer resp.Body.Close()
	return statusErr(resp)
}

// Register performs POST /users.
func (c *Client) Register(ctx context.Context, id, name, password string, publicKey []byte) error {
	body := wire.RegisterRequest{ID: id, Name: name, Password: password, PublicKey: publicKey}
	resp, err := c.postJSON(ctx, "/users", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return statusErr(resp)
}

// Login performs POST /login. On success the session cookie is captured
// by the client's cookie jar for subsequent authenticated calls.
func (c *Client) Login(ctx context.Context, username, password string) (wire.UserProfile, error) {
	resp, err := c.postJSON(ctx, "/login", wire.LoginRequest{Username: username, Password: password})
	if err != nil {
		return wire.UserProfile{}, err
	}
	defer resp.Body.Close()
	if err := statusErr(resp); err != nil {
		return wire.UserProfile{}, err
	}
	var profile wire.UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return wire.UserProfile{}, fmt.Errorf("transport: decode login response: %w", err)
	}
	return profile, nil
}

// Logout performs POST /logout.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.postJSON(ctx, "/logout", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return statusErr(resp)
}

// GetUser performs GET /users/{username}.
func (c *Client) GetUser(ctx context.Context, username string) (wire.UserProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/"+username, nil)
	if err != nil {
		return wire.UserProfile{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return wire.UserProfile{}, fmt.Errorf("transport: get user: %w", err)
	}
	defer resp.Body.Close()
	if err := statusErr(resp); err != nil {
		return wire.UserProfile{}, err
	}
	var profile wire.UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return wire.UserProfile{}, fmt.Errorf("transport: decode user response: %w", err)
	}
	return profile, nil
}

// SendMessage performs POST /messages, returning the sender's outbound
// mailbox entry (spec.md §4.4 step 6-7).
func (c *Client) SendMessage(ctx context.Context, recipient string, payload, mySecretKey, recipientSecretKey []byte) (wire.MessageEntry, error) {
	body := wire.SendMessageRequest{
		Recipient:          recipient,
		Contents:           payload,
		MySecretKey:        mySecretKey,
		RecipientSecretKey: recipientSecretKey,
	}
	resp, err := c.postJSON(ctx, "/messages", body)
	if err != nil {
		return wire.MessageEntry{}, err
	}
	defer resp.Body.Close()
	if err := statusErr(resp); err != nil {
		return wire.MessageEntry{}, err
	}
	var entry wire.MessageEntry
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		return wire.MessageEntry{}, fmt.Errorf("transport: decode send-message response: %w", err)
	}
	return entry, nil
}

// GetMessages performs GET /messages?after=&out_after=, matching spec.md
// §4.5's cold-start sync call. outAfter may be negative to mean "omit".
func (c *Client) GetMessages(ctx context.Context, after, outAfter int64) (wire.GetMessagesResponse, error) {
	url := c.baseURL + "/messages?after=" + strconv.FormatInt(after, 10)
	if outAfter >= 0 {
		url += "&out_after=" + strconv.FormatInt(outAfter, 10)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return wire.GetMessagesResponse{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return wire.GetMessagesResponse{}, fmt.Errorf("transport: get messages: %w", err)
	}
	defer resp.Body.Close()
	if err := statusErr(resp); err != nil {
		return wire.GetMessagesResponse{}, err
	}
	var out wire.GetMessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return wire.GetMessagesResponse{}, fmt.Errorf("transport: decode messages response: %w", err)
	}
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("transport: marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: POST %s: %w", path, err)
	}
	return resp, nil
}

// statusErr translates a non-2xx HTTP response into an error carrying the
// server's error body, mirroring reqwest's error_for_status().
func statusErr(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var errBody wire.ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&errBody)
	if errBody.Error != "" {
		return fmt.Errorf("transport: %s (HTTP %d)", errBody.Error, resp.StatusCode)
	}
	return fmt.Errorf("transport: HTTP %d", resp.StatusCode)
}
