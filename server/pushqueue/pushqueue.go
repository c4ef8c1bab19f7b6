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

// Package pushqueue tracks one outstanding notification channel per
// connected user, generalized from the teacher's session map pattern
// (session/manager.go's sessions map[string]Session guarded by
// sync.RWMutex) from "session by id" to "notification queue by user id".
package pushqueue

import (
	"sync"

	"github.com/google/uuid"
)

// Notification is enqueued for a recipient's open push connection after a
// send transaction commits.
type Notification struct {
	InboundID    int64
	Content      []byte
	WrappedKey   []byte
}

// Queue is a single connected user's notification channel: an unbounded
// FIFO of pending notifications (spec.md §3), exposed to the consumer as
// a channel so it composes with the notification loop's select statement.
// C itself has a fixed capacity of 1; overflow beyond that is held in an
// unbounded backing slice and drained into C by a background goroutine as
// the consumer catches up, so push never blocks and never drops.
type Queue struct {
	// ID distinguishes this connection's queue from any other queue ever
	// registered for the same user, so logs about a displaced or expired
	// connection can be correlated unambiguously (spec.md §4.3's
	// last-connect-wins replacement otherwise leaves only the user id to
	// tell two connections apart).
	ID string

	C    <-chan *Notification
	out  chan *Notification
	mu   sync.Mutex
	buf  []*Notification
	wake chan struct{}
	done chan struct{}
}

func newQueue() *Queue {
	q := &Queue{
		ID:   uuid.NewString(),
		out:  make(chan *Notification, 1),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	q.C = q.out
	go q.drain()
	return q
}

// push appends n to the queue, growing the backing slice without bound
// rather than blocking the caller or dropping the notification.
func (q *Queue) push(n *Notification) {
	q.mu.Lock()
	if len(q.buf) == 0 {
		select {
		case q.out <- n:
			q.mu.Unlock()
			return
		default:
		}
	}
	q.buf = append(q.buf, n)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// drain forwards buffered notifications into C in order as room frees up.
func (q *Queue) drain() {
	for {
		select {
		case <-q.wake:
		case <-q.done:
			return
		}

		for {
			q.mu.Lock()
			if len(q.buf) == 0 {
				q.mu.Unlock()
				break
			}
			n := q.buf[0]
			q.mu.Unlock()

			select {
			case q.out <- n:
				q.mu.Lock()
				q.buf = q.buf[1:]
				q.mu.Unlock()
			case <-q.done:
				return
			}
		}
	}
}

// close stops the queue's drain goroutine. Called once, from Unregister.
func (q *Queue) close() {
	close(q.done)
}

// Registry maps connected user ids to their open push queue.
type Registry struct {
	mu     sync.Mutex
	queues map[string]*Queue
}

// NewRegistry creates an empty push queue registry.
func NewRegistry() *Registry {
	return &Registry{queues: make(map[string]*Queue)}
}

// Register opens a new queue for userID, replacing and returning whether
// a previous connection for the same user was displaced.
func (r *Registry) Register(userID string) (q *Queue, replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, replaced = r.queues[userID]
	q = newQueue()
	r.queues[userID] = q
	return q, replaced
}

// Unregister removes userID's queue if it is still the same queue passed
// in (a later Register for the same user must not be torn down by an
// earlier connection's deferred cleanup), and stops its drain goroutine.
func (r *Registry) Unregister(userID string, q *Queue) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.queues[userID]; ok && current == q {
		delete(r.queues, userID)
		q.close()
	}
}

// Enqueue delivers a notification to userID's queue if one is open. There
// is no buffer limit to exceed (the queue is an unbounded FIFO per
// spec.md §3); delivery only fails to happen when no queue is open for
// userID, in which case the recipient discovers the message on next sync
// (spec.md §4.3, §4.5).
func (r *Registry) Enqueue(userID string, n *Notification) (delivered bool) {
	r.mu.Lock()
	q, ok := r.queues[userID]
	r.mu.Unlock()
	if !ok {
		return false
	}

	q.push(n)
	return true
}

// Connected reports whether userID currently has an open push queue.
func (r *Registry) Connected(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.queues[userID]
	return ok
}
