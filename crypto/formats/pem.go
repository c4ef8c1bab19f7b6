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

// Package formats encodes and decodes RSA keys as SPKI/PKCS8 DER (the
// on-wire and database form) and as PEM (the on-disk form), matching
// original_source's gen_key_pair, which persists keys as `<id>.priv` /
// `<id>.pub` PEM files.
package formats

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/dmrelay/dmrelay/crypto"
)

const (
	pemBlockPrivateKey = "PRIVATE KEY"
	pemBlockPublicKey  = "PUBLIC KEY"
)

// EncodePublicKeyDER encodes an RSA public key as PKIX (SPKI) DER, the form
// used on the wire and in the users table.
func EncodePublicKeyDER(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("formats: marshal public key: %w", err)
	}
	return der, nil
}

// DecodePublicKeyDER parses an SPKI DER-encoded RSA public key.
func DecodePublicKeyDER(der []byte) (*rsa.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("formats: parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("formats: public key is not RSA")
	}
	return rsaPub, nil
}

// EncodePrivateKeyDER encodes an RSA private key as PKCS8 DER.
func EncodePrivateKeyDER(priv *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("formats: marshal private key: %w", err)
	}
	return der, nil
}

// DecodePrivateKeyDER parses a PKCS8 DER-encoded RSA private key.
func DecodePrivateKeyDER(der []byte) (*rsa.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("formats: parse private key: %w", err)
	}
	rsaPriv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("formats: private key is not RSA")
	}
	return rsaPriv, nil
}

// EncodePublicKeyPEM wraps the SPKI DER encoding of pub in a PEM block,
// suitable for persisting as a `<id>.pub` file.
func EncodePublicKeyPEM(pub *rsa.PublicKey) ([]byte, error) {
	der, err := EncodePublicKeyDER(pub)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemBlockPublicKey, Bytes: der}), nil
}

// EncodePrivateKeyPEM wraps the PKCS8 DER encoding of priv in a PEM block,
// suitable for persisting as a `<id>.priv` file.
func EncodePrivateKeyPEM(priv *rsa.PrivateKey) ([]byte, error) {
	der, err := EncodePrivateKeyDER(priv)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemBlockPrivateKey, Bytes: der}), nil
}

// DecodePublicKeyPEM parses a PEM-encoded SPKI public key.
func DecodePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemBlockPublicKey {
		return nil, crypto.ErrInvalidPEM
	}
	return DecodePublicKeyDER(block.Bytes)
}

// DecodePrivateKeyPEM parses a PEM-encoded PKCS8 private key.
func DecodePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemBlockPrivateKey {
		return nil, crypto.ErrInvalidPEM
	}
	return DecodePrivateKeyDER(block.Bytes)
}
