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

// Package keys generates and wraps the RSA-2048 keypairs used to protect
// per-message symmetric keys.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	relaycrypto "github.com/dmrelay/dmrelay/crypto"
)

// KeyPair holds an RSA-2048 private/public keypair.
type KeyPair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// GenerateKeyPair generates a fresh RSA-2048 keypair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, relaycrypto.RSAKeyBits)
	if err != nil {
		return nil, fmt.Errorf("keys: generate rsa keypair: %w", err)
	}
	return &KeyPair{Private: priv, Public: &priv.PublicKey}, nil
}

// Fingerprint returns the first 8 bytes of the SHA-256 hash of the public
// modulus, hex-encoded. Useful for log lines; not a security boundary.
func (kp *KeyPair) Fingerprint() string {
	hash := sha256.Sum256(kp.Public.N.Bytes())
	return hex.EncodeToString(hash[:8])
}

// WrapKey encrypts a symmetric key under an RSA public key using
// PKCS#1 v1.5, matching spec.md's wrap_key contract.
func WrapKey(symmetricKey []byte, pub *rsa.PublicKey) ([]byte, error) {
	wrapped, err := rsa.EncryptPKCS1v15(rand.Reader, pub, symmetricKey)
	if err != nil {
		return nil, fmt.Errorf("keys: wrap key: %w", err)
	}
	return wrapped, nil
}

// UnwrapKey decrypts a wrapped symmetric key with an RSA private key.
func UnwrapKey(wrapped []byte, priv *rsa.PrivateKey) ([]byte, error) {
	key, err := rsa.DecryptPKCS1v15(rand.Reader, priv, wrapped)
	if err != nil {
		return nil, fmt.Errorf("keys: unwrap key: %w", err)
	}
	return key, nil
}
