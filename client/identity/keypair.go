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

// Package identity persists the client's RSA keypair on disk as
// `<id>.priv` / `<id>.pub` PEM files, matching original_source's
// app.rs::gen_key_pair exactly (same file naming, same "generate once,
// reuse thereafter" behavior).
package identity

import (
	"crypto/rsa"
	"os"
	"path/filepath"

	"github.com/dmrelay/dmrelay/crypto/formats"
	"github.com/dmrelay/dmrelay/crypto/keys"
)

// LoadOrGenerateKeyPair returns the keypair for id. If <dir>/<id>.priv
// exists it is loaded, together with <dir>/<id>.pub (which is rederived
// from the private key and written if missing); otherwise a fresh keypair
// is generated and persisted to both files.
func LoadOrGenerateKeyPair(dir, id string) (*keys.KeyPair, error) {
	privPath := filepath.Join(dir, id+".priv")
	pubPath := filepath.Join(dir, id+".pub")

	if _, err := os.Stat(privPath); err == nil {
		return loadKeyPair(privPath, pubPath)
	}

	kp, err := keys.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	if err := persistKeyPair(kp, privPath, pubPath); err != nil {
		return nil, err
	}
	return kp, nil
}

func loadKeyPair(privPath, pubPath string) (*keys.KeyPair, error) {
	privPEM, err := os.ReadFile(privPath)
	if err != nil {
		return nil, err
	}
	priv, err := formats.DecodePrivateKeyPEM(privPEM)
	if err != nil {
		return nil, err
	}

	if pubPEM, err := os.ReadFile(pubPath); err == nil {
		pub, err := formats.DecodePublicKeyPEM(pubPEM)
		if err != nil {
			return nil, err
		}
		return &keys.KeyPair{Private: priv, Public: pub}, nil
	}

	// Public key file missing: rederive and persist it, matching
	// gen_key_pair's independent existence checks for each file.
	pub := &priv.PublicKey
	if err := writePublicKey(pub, pubPath); err != nil {
		return nil, err
	}
	return &keys.KeyPair{Private: priv, Public: pub}, nil
}

func persistKeyPair(kp *keys.KeyPair, privPath, pubPath string) error {
	privPEM, err := formats.EncodePrivateKeyPEM(kp.Private)
	if err != nil {
		return err
	}
	if err := os.WriteFile(privPath, privPEM, 0600); err != nil {
		return err
	}
	return writePublicKey(kp.Public, pubPath)
}

func writePublicKey(pub *rsa.PublicKey, path string) error {
	encoded, err := formats.EncodePublicKeyPEM(pub)
	if err != nil {
		return err
	}
	return os.WriteFile(path, encoded, 0644)
}
