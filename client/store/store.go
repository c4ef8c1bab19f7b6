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

package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"go.etcd.io/bbolt"
	"golang.org/x/crypto/argon2"

	relaycrypto "github.com/dmrelay/dmrelay/crypto"
)

var (
	contactsBucket = []byte("contacts")
	messagesBucket = []byte("messages")
	metaBucket     = []byte("meta")
	saltKey        = []byte("kdf_salt")
)

// saltSize matches the 16-byte Argon2 salt length used elsewhere in the
// repo (relaycrypto.DefaultPasswordParams).
const saltSize = 16

// Store is the client-local durable key-value store named in spec.md §6.
// It wraps a bbolt database with two record buckets (contacts, messages)
// plus a meta bucket holding the KDF salt. Every record value is sealed
// with ChaCha20-Poly1305 under a key derived from the login password
// before it reaches disk; bbolt itself never sees plaintext. This mirrors
// the reference client's SQLCipher-backed database.rs, replacing
// SQLCipher's page-level encryption with an application-level AEAD layer
// since bbolt has no native encryption-at-rest hook.
type Store struct {
	db  *bbolt.DB
	key []byte

	mu           sync.RWMutex
	maxSent      map[string]int64 // sender id -> max server id sent
	maxReceived  map[string]int64 // receiver id -> max server id received
}

// Open opens (creating if necessary) the bbolt database at path, deriving
// the at-rest encryption key from password via Argon2id. A fresh random
// salt is generated and stored in the meta bucket on first open; later
// opens reuse the stored salt so the same password re-derives the same key.
func Open(path, password string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	s := &Store{
		db:          db,
		maxSent:     make(map[string]int64),
		maxReceived: make(map[string]int64),
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{contactsBucket, messagesBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	salt, err := s.loadOrCreateSalt()
	if err != nil {
		db.Close()
		return nil, err
	}
	s.key = argon2.IDKey([]byte(password), salt, 3, 64*1024, 2, uint32(relaycrypto.SymmetricKeySize))

	if err := s.rebuildIndex(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) loadOrCreateSalt() ([]byte, error) {
	var salt []byte
	err := s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		if existing := meta.Get(saltKey); existing != nil {
			salt = append([]byte(nil), existing...)
			return nil
		}
		fresh, err := relaycrypto.NewSymmetricKey()
		if err != nil {
			return fmt.Errorf("generate kdf salt: %w", err)
		}
		fresh = fresh[:saltSize]
		if err := meta.Put(saltKey, fresh); err != nil {
			return err
		}
		salt = fresh
		return nil
	})
	return salt, err
}

// seal encrypts plaintext for storage, returning ciphertext||nonce.
func (s *Store) seal(plaintext []byte) ([]byte, error) {
	ciphertext, nonce, err := relaycrypto.Protect(plaintext, s.key)
	if err != nil {
		return nil, err
	}
	return relaycrypto.JoinPayload(ciphertext, nonce), nil
}

// open decrypts a payload produced by seal.
func (s *Store) open(payload []byte) ([]byte, error) {
	ciphertext, nonce, err := relaycrypto.SplitPayload(payload)
	if err != nil {
		return nil, err
	}
	return relaycrypto.Unprotect(ciphertext, s.key, nonce)
}

// CreateContact persists a newly discovered correspondent.
func (s *Store) CreateContact(c Contact) error {
	plain, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("store: marshal contact: %w", err)
	}
	sealed, err := s.seal(plain)
	if err != nil {
		return fmt.Errorf("store: seal contact: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(contactsBucket).Put([]byte(c.ID), sealed)
	})
}

// GetContact looks up a contact by id. ok is false if no such contact exists.
func (s *Store) GetContact(id string) (c Contact, ok bool, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		sealed := tx.Bucket(contactsBucket).Get([]byte(id))
		if sealed == nil {
			return nil
		}
		plain, derr := s.open(sealed)
		if derr != nil {
			return fmt.Errorf("store: decrypt contact %s: %w", id, derr)
		}
		if derr := json.Unmarshal(plain, &c); derr != nil {
			return fmt.Errorf("store: unmarshal contact %s: %w", id, derr)
		}
		ok = true
		return nil
	})
	return c, ok, err
}

// ListContacts returns every known contact, in no particular order.
func (s *Store) ListContacts() ([]Contact, error) {
	var contacts []Contact
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(contactsBucket).ForEach(func(_, sealed []byte) error {
			plain, derr := s.open(sealed)
			if derr != nil {
				return fmt.Errorf("store: decrypt contact: %w", derr)
			}
			var c Contact
			if derr := json.Unmarshal(plain, &c); derr != nil {
				return fmt.Errorf("store: unmarshal contact: %w", derr)
			}
			contacts = append(contacts, c)
			return nil
		})
	})
	return contacts, err
}

// CreateMessage persists a reconciled message row, assigning it the next
// local row id. It also updates the in-memory server-id index used by
// MaxServerIDForRole.
func (s *Store) CreateMessage(m Message) (int64, error) {
	var id int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(messagesBucket)
		next, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("allocate row id: %w", err)
		}
		id = int64(next)
		m.ID = id

		plain, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		sealed, err := s.seal(plain)
		if err != nil {
			return fmt.Errorf("seal message: %w", err)
		}
		return bucket.Put(rowKey(id), sealed)
	})
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	if m.ServerID > s.maxSent[m.SenderID] {
		s.maxSent[m.SenderID] = m.ServerID
	}
	if m.ServerID > s.maxReceived[m.ReceiverID] {
		s.maxReceived[m.ReceiverID] = m.ServerID
	}
	s.mu.Unlock()

	return id, nil
}

// ListMessagesByConversation returns every message exchanged with
// contactID, ordered by local row id (insertion order), matching
// database.rs's get_all_messages_by_contact.
func (s *Store) ListMessagesByConversation(contactID string) ([]Message, error) {
	var messages []Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(messagesBucket).ForEach(func(_, sealed []byte) error {
			plain, derr := s.open(sealed)
			if derr != nil {
				return fmt.Errorf("store: decrypt message: %w", derr)
			}
			var m Message
			if derr := json.Unmarshal(plain, &m); derr != nil {
				return fmt.Errorf("store: unmarshal message: %w", derr)
			}
			if m.SenderID == contactID || m.ReceiverID == contactID {
				messages = append(messages, m)
			}
			return nil
		})
	})
	return messages, err
}

// MaxServerIDForRole returns the highest server id seen for identity in the
// given role (sender or receiver), or NoServerID if none. This is the Go
// analogue of get_last_sent_message_id / get_last_received_message_id,
// backing the client's cold-start sync cursor (spec.md §4.5 step 1).
func (s *Store) MaxServerIDForRole(identity string, role Role) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var index map[string]int64
	if role == RoleSender {
		index = s.maxSent
	} else {
		index = s.maxReceived
	}
	if max, ok := index[identity]; ok {
		return max
	}
	return NoServerID
}

// rebuildIndex scans the messages bucket once at open time to populate the
// in-memory max-server-id index, since bbolt keeps no secondary indexes.
func (s *Store) rebuildIndex() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(messagesBucket).ForEach(func(_, sealed []byte) error {
			plain, err := s.open(sealed)
			if err != nil {
				return fmt.Errorf("store: decrypt message during index rebuild: %w", err)
			}
			var m Message
			if err := json.Unmarshal(plain, &m); err != nil {
				return fmt.Errorf("store: unmarshal message during index rebuild: %w", err)
			}
			if m.ServerID > s.maxSent[m.SenderID] {
				s.maxSent[m.SenderID] = m.ServerID
			}
			if m.ServerID > s.maxReceived[m.ReceiverID] {
				s.maxReceived[m.ReceiverID] = m.ServerID
			}
			return nil
		})
	})
}

func rowKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}
