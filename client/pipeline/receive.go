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

package pipeline

import (
	"crypto/rsa"

	"github.com/dmrelay/dmrelay/internal/logger"
)

// Inbound is a mailbox entry as received from the server, either over the
// push channel or from a sync response, prior to being processed by
// ReceiveEntry.
type Inbound struct {
	ServerID    int64
	Payload     []byte
	WrappedKey  []byte
}

// Received is the outcome of a successful receive-path run: the decrypted
// message plus the symmetric key it was sealed under, ready for local
// persistence by the caller (which owns the store handle).
type Received struct {
	Data         MessageData
	SymmetricKey []byte
}

// ReceiveEntry executes spec.md §4.4's receive-path steps 1-3 for a single
// mailbox entry: unwrap, split+unprotect, parse. ok is false when the
// entry should be dropped (unwrap failure, AEAD failure, or parse
// failure); each case is logged at the appropriate level before returning.
func ReceiveEntry(log logger.Logger, entry Inbound, priv *rsa.PrivateKey) (received Received, ok bool) {
	key, err := UnwrapOwnKey(entry.WrappedKey, priv)
	if err != nil {
		log.Warn("failed to unwrap message key, skipping entry",
			logger.Any("server_id", entry.ServerID), logger.Error(err))
		return Received{}, false
	}

	data, err := DecryptMessageData(entry.Payload, key)
	if err != nil {
		log.Warn("received tampered message, dropping entry",
			logger.Any("server_id", entry.ServerID), logger.Error(err))
		return Received{}, false
	}

	return Received{Data: data, SymmetricKey: key}, true
}

// CheckCounter compares a received sent_counter against the expected next
// value for the sender (maxObservedSentCounter+1), logging a gap or
// out-of-order/replay warning per spec.md §4.4's "Counter checks on
// receive". Detection is advisory: the caller stores the message either
// way.
func CheckCounter(log logger.Logger, senderID string, received, maxObservedSentCounter int64) {
	expected := maxObservedSentCounter + 1
	switch {
	case received > expected:
		log.Warn("gap detected in sender's message sequence",
			logger.String("sender_id", senderID),
			logger.Any("expected", expected), logger.Any("received", received))
	case received < expected:
		log.Warn("out-of-order or replayed message",
			logger.String("sender_id", senderID),
			logger.Any("expected", expected), logger.Any("received", received))
	}
}
