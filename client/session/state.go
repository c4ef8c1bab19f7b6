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

// Package session tracks the client-side connection state machine named
// in spec.md §4.5: Disconnected -> Connected -> Authenticated -> Synced ->
// Live -> (Disconnected | Error). The reference client (app.rs) folds
// this state implicitly into its Pages enum and a handful of Option
// fields; this package makes the state machine and its legal transitions
// explicit and independently testable.
package session

import (
	"fmt"
	"sync"
)

// State is one node of the client connection state machine.
type State int

const (
	Disconnected State = iota
	Connected
	Authenticated
	Synced
	Live
	Error
)

// String renders the state for logging.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Authenticated:
		return "authenticated"
	case Synced:
		return "synced"
	case Live:
		return "live"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// legalTransitions enumerates the edges spec.md §4.5 allows.
var legalTransitions = map[State]map[State]bool{
	Disconnected:  {Connected: true},
	Connected:     {Authenticated: true, Disconnected: true, Error: true},
	Authenticated: {Synced: true, Disconnected: true, Error: true},
	Synced:        {Live: true, Disconnected: true, Error: true},
	Live:          {Authenticated: true, Disconnected: true, Error: true},
	Error:         {Disconnected: true},
}

// Machine is a guarded, concurrency-safe holder of the current State.
type Machine struct {
	mu    sync.Mutex
	state State
}

// NewMachine returns a Machine starting in Disconnected.
func NewMachine() *Machine {
	return &Machine{state: Disconnected}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition moves to next if the edge from the current state is legal,
// returning an error otherwise. Callers use this to enforce spec.md
// §4.5's "it is a programming error to send from earlier states" at the
// transition boundary rather than at every call site.
func (m *Machine) Transition(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !legalTransitions[m.state][next] {
		return fmt.Errorf("session: illegal transition %s -> %s", m.state, next)
	}
	m.state = next
	return nil
}

// CanSend reports whether the current state permits sending a message:
// Live, or Authenticated+Synced as spec.md §4.5 puts it. Since Synced is
// itself a distinct state entered only from Authenticated, and Live is
// only reached via Synced, both "Live" and "Synced" satisfy the send
// precondition.
func (m *Machine) CanSend() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Live || m.state == Synced
}
