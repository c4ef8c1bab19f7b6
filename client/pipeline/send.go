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
	"fmt"

	relaycrypto "github.com/dmrelay/dmrelay/crypto"
	"github.com/dmrelay/dmrelay/crypto/keys"
)

// Outbound is the wire-ready result of preparing a local send: the sealed
// payload plus the symmetric key wrapped for each party, matching
// spec.md §4.4 step 6's POST body shape.
type Outbound struct {
	Payload            []byte
	SenderWrappedKey   []byte
	RecipientWrappedKey []byte
	SymmetricKey       []byte // kept so the caller can verify/store without re-wrapping
}

// PrepareSend executes spec.md §4.4 steps 2-5 for a local send of content
// to receiverID, given the caller's already-computed counters (step 1 is
// the caller's responsibility since it depends on locally stored history
// via store.Store.ListMessagesByConversation; posting the result, step 6,
// is left to the caller as well).
func PrepareSend(senderID, receiverID, content string, sentCounter, receiveCounter int64, senderPub, receiverPub *rsa.PublicKey) (Outbound, MessageData, error) {
	data := NewMessageData(senderID, receiverID, content, receiveCounter, sentCounter)

	symmetricKey, err := relaycrypto.NewSymmetricKey()
	if err != nil {
		return Outbound{}, MessageData{}, fmt.Errorf("pipeline: mint symmetric key: %w", err)
	}

	payload, err := data.Encrypt(symmetricKey)
	if err != nil {
		return Outbound{}, MessageData{}, err
	}

	senderWrapped, err := keys.WrapKey(symmetricKey, senderPub)
	if err != nil {
		return Outbound{}, MessageData{}, fmt.Errorf("pipeline: wrap key for sender: %w", err)
	}
	recipientWrapped, err := keys.WrapKey(symmetricKey, receiverPub)
	if err != nil {
		return Outbound{}, MessageData{}, fmt.Errorf("pipeline: wrap key for recipient: %w", err)
	}

	return Outbound{
		Payload:             payload,
		SenderWrappedKey:    senderWrapped,
		RecipientWrappedKey: recipientWrapped,
		SymmetricKey:        symmetricKey,
	}, data, nil
}

// VerifyOwnCopy decrypts the server's echoed outbound entry under the
// locally held symmetric key, matching spec.md §4.4 step 7's "decrypts
// its own copy as a verification step".
func VerifyOwnCopy(payload, symmetricKey []byte) (MessageData, error) {
	return DecryptMessageData(payload, symmetricKey)
}

// UnwrapOwnKey decrypts a wrapped key with the local private key, used
// by the receive path.
func UnwrapOwnKey(wrapped []byte, priv *rsa.PrivateKey) ([]byte, error) {
	return keys.UnwrapKey(wrapped, priv)
}
