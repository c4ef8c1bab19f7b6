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

// Package usercache caches the public profile returned by "get user", the
// server's hottest read path (resolved on every send and contact lookup).
// The lock is held only during lookup/insert, per SPEC_FULL.md §6.
package usercache

import (
	"container/list"
	"sync"

	"github.com/dmrelay/dmrelay/pkg/storage"
)

// Cache is a fixed-capacity LRU cache of user profiles keyed by user id.
type Cache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List
}

type entry struct {
	key  string
	user *storage.User
}

// New creates a Cache holding up to capacity entries.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached user, if present, moving it to most-recently-used.
func (c *Cache) Get(id string) (*storage.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[id]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).user, true
}

// Put inserts or refreshes a user, evicting the least-recently-used entry
// if the cache is at capacity.
func (c *Cache) Put(user *storage.User) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[user.ID]; ok {
		el.Value.(*entry).user = user
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&entry{key: user.ID, user: user})
	c.items[user.ID] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*entry).key)
		}
	}
}

// Invalidate removes a user from the cache, if present.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[id]; ok {
		c.order.Remove(el)
		delete(c.items, id)
	}
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
