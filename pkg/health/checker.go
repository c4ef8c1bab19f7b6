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

package health

import (
	"context"
	"runtime"
	"time"

	"github.com/dmrelay/dmrelay/pkg/storage"
)

// Pinger is the subset of storage.Store the checker depends on.
type Pinger interface {
	Ping(ctx context.Context) error
	Stats() storage.PoolStats
}

const (
	MemoryThresholdHealthy  = 70.0 // percent
	MemoryThresholdDegraded = 85.0 // percent
)

// Checker performs health checks against the relay's dependencies.
type Checker struct {
	store Pinger
}

// NewChecker creates a new health checker bound to a storage pool.
func NewChecker(store Pinger) *Checker {
	return &Checker{store: store}
}

// CheckAll performs all health checks.
func (c *Checker) CheckAll(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Timestamp: time.Now(),
		Status:    StatusHealthy,
		Errors:    make([]string, 0),
	}

	status.DatabaseStatus = c.checkDatabase(ctx)
	if status.DatabaseStatus.Status != StatusHealthy {
		status.Status = status.DatabaseStatus.Status
		if status.DatabaseStatus.Error != "" {
			status.Errors = append(status.Errors, "database: "+status.DatabaseStatus.Error)
		}
	}

	status.SystemStatus = checkSystem()
	if status.SystemStatus.Status != StatusHealthy {
		if status.Status == StatusHealthy {
			status.Status = status.SystemStatus.Status
		} else if status.SystemStatus.Status == StatusUnhealthy {
			status.Status = StatusUnhealthy
		}
		if status.SystemStatus.Error != "" {
			status.Errors = append(status.Errors, "system: "+status.SystemStatus.Error)
		}
	}

	return status
}

// checkDatabase pings the storage pool and reports its utilization.
func (c *Checker) checkDatabase(ctx context.Context) *DatabaseHealth {
	health := &DatabaseHealth{Status: StatusHealthy}

	start := time.Now()
	err := c.store.Ping(ctx)
	health.LatencyMS = time.Since(start).Milliseconds()

	if err != nil {
		health.Status = StatusUnhealthy
		health.Connected = false
		health.Error = err.Error()
		return health
	}

	health.Connected = true
	stats := c.store.Stats()
	health.AcquiredConns = stats.AcquiredConns
	health.IdleConns = stats.IdleConns
	health.MaxConns = stats.MaxConns

	if stats.MaxConns > 0 && stats.AcquiredConns >= stats.MaxConns {
		health.Status = StatusDegraded
	}

	return health
}

// checkSystem checks the health of system resources.
func checkSystem() *SystemHealth {
	health := &SystemHealth{Status: StatusHealthy}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	health.MemoryUsedMB = m.Alloc / 1024 / 1024
	health.MemoryTotalMB = m.Sys / 1024 / 1024
	if health.MemoryTotalMB > 0 {
		health.MemoryPercent = float64(health.MemoryUsedMB) / float64(health.MemoryTotalMB) * 100
	}

	health.GoRoutines = runtime.NumGoroutine()

	if health.MemoryPercent >= MemoryThresholdDegraded {
		health.Status = StatusUnhealthy
	} else if health.MemoryPercent >= MemoryThresholdHealthy {
		health.Status = StatusDegraded
	}

	return health
}
