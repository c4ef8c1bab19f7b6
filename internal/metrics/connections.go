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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginsTotal tracks login attempts.
	LoginsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Total number of login attempts",
		},
		[]string{"status"}, // success, failure
	)

	// RegistrationsTotal tracks user registrations.
	RegistrationsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "registrations_total",
			Help:      "Total number of registration attempts",
		},
		[]string{"status"}, // success, duplicate, invalid
	)

	// PushConnectionsActive tracks currently open notification channels.
	PushConnectionsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "connections_active",
			Help:      "Number of currently open notification websocket connections",
		},
	)

	// PushConnectionsOpened tracks total notification channel opens.
	PushConnectionsOpened = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "connections_opened_total",
			Help:      "Total number of notification websocket connections opened",
		},
	)

	// PushConnectionsReplaced tracks last-connect-wins queue replacements.
	PushConnectionsReplaced = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "connections_replaced_total",
			Help:      "Total number of times a new connection displaced a user's prior push queue",
		},
	)

	// PushQueueDepth tracks in-flight push queue depth at send time.
	PushQueueDepth = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "queue_depth",
			Help:      "Number of messages queued for push delivery at enqueue time",
			Buckets:   prometheus.LinearBuckets(0, 2, 10),
		},
	)
)
