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

package crypto

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// NewSymmetricKey returns a fresh, cryptographically random message key.
func NewSymmetricKey() ([]byte, error) {
	key := make([]byte, SymmetricKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("crypto: generate symmetric key: %w", err)
	}
	return key, nil
}

// Protect seals plaintext under key with ChaCha20-Poly1305, returning the
// ciphertext (tag included) and the freshly generated nonce separately.
func Protect(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	if len(key) != SymmetricKeySize {
		return nil, nil, ErrInvalidKeySize
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: init aead: %w", err)
	}

	nonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("crypto: generate nonce: %w", err)
	}

	ciphertext = aead.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Unprotect verifies and decrypts ciphertext produced by Protect. Any
// tampering of ciphertext, nonce, or key mismatch fails with ErrAuthFailed.
func Unprotect(ciphertext, key, nonce []byte) ([]byte, error) {
	if len(key) != SymmetricKeySize {
		return nil, ErrInvalidKeySize
	}
	if len(nonce) != NonceSize {
		return nil, ErrAuthFailed
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: init aead: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// JoinPayload concatenates ciphertext and nonce into the on-wire form
// ciphertext || nonce, with the nonce occupying the trailing NonceSize bytes.
func JoinPayload(ciphertext, nonce []byte) []byte {
	payload := make([]byte, len(ciphertext)+len(nonce))
	copy(payload, ciphertext)
	copy(payload[len(ciphertext):], nonce)
	return payload
}

// SplitPayload reverses JoinPayload. A payload shorter than NonceSize fails
// with ErrAuthFailed since the split is purely positional.
func SplitPayload(payload []byte) (ciphertext, nonce []byte, err error) {
	if len(payload) < NonceSize {
		return nil, nil, ErrAuthFailed
	}
	split := len(payload) - NonceSize
	ciphertext = payload[:split]
	nonce = payload[split:]
	return ciphertext, nonce, nil
}
