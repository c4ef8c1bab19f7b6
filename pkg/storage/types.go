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

package storage

// User represents a registered relay account.
type User struct {
	ID           string `json:"id"`
	DisplayName  string `json:"display_name"`
	PasswordHash string `json:"-"`
	PublicKey    []byte `json:"public_key"`
}

// Message represents a single stored ciphertext row in either mailbox.
type Message struct {
	ID         int64  `json:"id"`
	UserID     string `json:"user_id"`
	Content    []byte `json:"content"`
	WrappedKey []byte `json:"wrapped_key"`
}

// SentMessage is the pair of rows produced by a single send: the row
// written into the recipient's inbound mailbox and the row written into
// the sender's outbound mailbox. Both share the same ciphertext but carry
// distinct wrapped keys (recipient's vs sender's), per spec.md §3.
type SentMessage struct {
	Inbound  *Message
	Outbound *Message
}
