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

// Package pipeline implements the client's plaintext-to-wire and
// wire-to-plaintext transforms (spec.md §4.4), grounded on the reference
// client's message_data.rs and the send/receive paths in app.rs.
package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	relaycrypto "github.com/dmrelay/dmrelay/crypto"
)

// MessageData is the plaintext envelope sealed under a per-message
// symmetric key before it ever leaves the client. Field names mirror
// message_data.rs's MessageData, translated from snake_case to Go's
// idiom; the JSON tags keep the wire-compatible snake_case shape.
type MessageData struct {
	SenderID       string `json:"sender_id"`
	ReceiverID     string `json:"receiver_id"`
	Timestamp      string `json:"timestamp"`
	Content        string `json:"content"`
	ReceiveCounter int64  `json:"receive_counter"`
	SentCounter    int64  `json:"sent_counter"`
}

// NewMessageData constructs a MessageData stamped with the current time,
// mirroring MessageData::new.
func NewMessageData(sender, receiver, content string, receiveCounter, sentCounter int64) MessageData {
	return MessageData{
		SenderID:       sender,
		ReceiverID:     receiver,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		Content:        content,
		ReceiveCounter: receiveCounter,
		SentCounter:    sentCounter,
	}
}

// Encrypt serializes and seals the message under key, returning the
// wire-format payload ciphertext||nonce.
func (m MessageData) Encrypt(key []byte) ([]byte, error) {
	plain, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("pipeline: marshal message data: %w", err)
	}
	ciphertext, nonce, err := relaycrypto.Protect(plain, key)
	if err != nil {
		return nil, fmt.Errorf("pipeline: protect message data: %w", err)
	}
	return relaycrypto.JoinPayload(ciphertext, nonce), nil
}

// DecryptMessageData reverses Encrypt, verifying and parsing a payload
// produced by a peer's Encrypt call under the shared per-message key.
func DecryptMessageData(payload, key []byte) (MessageData, error) {
	ciphertext, nonce, err := relaycrypto.SplitPayload(payload)
	if err != nil {
		return MessageData{}, fmt.Errorf("pipeline: split payload: %w", err)
	}
	plain, err := relaycrypto.Unprotect(ciphertext, key, nonce)
	if err != nil {
		return MessageData{}, fmt.Errorf("pipeline: unprotect message data: %w", err)
	}
	var m MessageData
	if err := json.Unmarshal(plain, &m); err != nil {
		return MessageData{}, fmt.Errorf("pipeline: unmarshal message data: %w", err)
	}
	return m, nil
}
