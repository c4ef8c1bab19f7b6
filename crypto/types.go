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

// Package crypto provides the cryptographic primitives used by the relay:
// AEAD message protection, RSA key wrapping, and Argon2id password hashing.
package crypto

import "errors"

// SymmetricKeySize is the size in bytes of a freshly minted message key.
const SymmetricKeySize = 32

// NonceSize is the size in bytes of a ChaCha20-Poly1305 nonce. On the wire
// the nonce occupies the trailing NonceSize bytes of the payload.
const NonceSize = 12

// RSAKeyBits is the modulus size used for new keypairs.
const RSAKeyBits = 2048

// Common errors returned by the crypto package.
var (
	// ErrAuthFailed is returned by Unprotect when the AEAD tag does not
	// verify, whether from tampering, a wrong key, or truncated input.
	ErrAuthFailed = errors.New("crypto: authentication failed")

	// ErrInvalidKeySize is returned when a symmetric key is not exactly
	// SymmetricKeySize bytes.
	ErrInvalidKeySize = errors.New("crypto: invalid key size")

	// ErrInvalidPEM is returned when PEM decoding fails or the block type
	// does not match what was requested.
	ErrInvalidPEM = errors.New("crypto: invalid PEM block")

	// ErrInvalidPasswordHash is returned when a stored hash string cannot
	// be parsed; VerifyPassword reports that case as false.
	ErrInvalidPasswordHash = errors.New("crypto: invalid password hash format")
)
