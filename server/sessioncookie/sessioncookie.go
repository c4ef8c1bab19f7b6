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

// Package sessioncookie implements the private (authenticated+encrypted)
// session cookie named in spec.md §6, playing the role of
// original_source's `request.cookies().get_private("user")`: the cookie's
// only payload is the session user id, sealed so the client cannot forge
// or read it.
package sessioncookie

import (
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

// Codec seals and opens the session cookie.
type Codec struct {
	sc         *securecookie.SecureCookie
	cookieName string
	ttl        time.Duration
}

// userIDValue is the cookie payload. A struct (rather than a bare string)
// keeps the door open for future fields without breaking the wire shape.
type userIDValue struct {
	UserID string
}

// New builds a Codec. hashKey authenticates the cookie (32 or 64 bytes);
// blockKey encrypts it (16, 24, or 32 bytes for AES-128/192/256).
func New(cookieName string, hashKey, blockKey []byte, ttl time.Duration) *Codec {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(ttl.Seconds()))

	return &Codec{
		sc:         sc,
		cookieName: cookieName,
		ttl:        ttl,
	}
}

// Set attaches a session cookie naming userID to the response.
func (c *Codec) Set(w http.ResponseWriter, userID string) error {
	encoded, err := c.sc.Encode(c.cookieName, userIDValue{UserID: userID})
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(c.ttl),
	})
	return nil
}

// Get reads and authenticates the session cookie from a request, returning
// the session user id. An error means the cookie is absent, expired, or
// tampered with — spec.md §4.3 treats all of these as "not authenticated".
func (c *Codec) Get(r *http.Request) (string, error) {
	cookie, err := r.Cookie(c.cookieName)
	if err != nil {
		return "", err
	}

	var value userIDValue
	if err := c.sc.Decode(c.cookieName, cookie.Value, &value); err != nil {
		return "", err
	}
	return value.UserID, nil
}

// Clear removes the session cookie (logout).
func (c *Codec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}
