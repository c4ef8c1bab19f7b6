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

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmrelay/dmrelay/client/session"
	"github.com/dmrelay/dmrelay/client/transport"
	"github.com/dmrelay/dmrelay/internal/logger"
)

const (
	reconnectBaseDelay = 500 * time.Millisecond
	reconnectMaxDelay  = 30 * time.Second
)

// Live opens the push channel and processes frames until the context is
// cancelled or the connection fails, applying spec.md §4.4's receive path
// to each frame (spec.md §4.5 "Live notifications"). On success the
// machine moves Synced -> Live; on transport failure it returns to
// Authenticated, matching "Any transport failure in Live returns to
// Authenticated". If the channel cannot be opened at all, the state is
// left unchanged.
func (l *Loop) Live(ctx context.Context) error {
	stream, err := transport.DialNotifications(ctx, l.client.BaseURL(), l.client)
	if err != nil {
		return fmt.Errorf("sync: open notifications channel: %w", err)
	}
	defer stream.Close()

	if err := l.machine.Transition(session.Live); err != nil {
		return err
	}

	for {
		frame, err := stream.Read(ctx)
		if err != nil {
			_ = l.machine.Transition(session.Authenticated)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("sync: notifications channel closed: %w", err)
		}

		if err := l.processEntry(ctx, frame.ID, frame.Contents, frame.SecretKey, conversationBySender); err != nil {
			l.log.Error("failed to process live notification", logger.Error(err))
		}
	}
}

// Reconnect implements the reconnect path spec.md §4.5 allows but leaves
// optional ("a reconnect path may re-sync"): on a Live transport failure
// it re-runs cold-start sync and reopens the push channel, backing off
// exponentially (capped) between attempts. It runs until ctx is
// cancelled, returning nil only when the caller cancels ctx.
func (l *Loop) Reconnect(ctx context.Context) error {
	delay := reconnectBaseDelay
	for {
		if err := l.ColdStartSync(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.log.Warn("reconnect: cold-start sync failed, backing off", logger.Error(err), logger.Duration("delay", delay))
			if !sleepOrDone(ctx, delay) {
				return nil
			}
			delay = nextDelay(delay)
			continue
		}

		err := l.Live(ctx)
		if err == nil {
			if ctx.Err() != nil {
				return nil
			}
			// Live returns cleanly only when ctx is cancelled, which the
			// check above already handles; otherwise start over.
			delay = reconnectBaseDelay
			continue
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}

		l.log.Warn("reconnect: live channel dropped, backing off", logger.Error(err), logger.Duration("delay", delay))
		if !sleepOrDone(ctx, delay) {
			return nil
		}
		delay = nextDelay(delay)
	}
}

func nextDelay(d time.Duration) time.Duration {
	next := d * 2
	if next > reconnectMaxDelay {
		return reconnectMaxDelay
	}
	return next
}

// sleepOrDone waits for d or ctx cancellation, returning false if ctx won
// the race.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
