// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package chain

import "sync/atomic"

// Metrics is the telemetry collaborator (§7): the core only ever
// increments named counters through it, never reaches for a concrete
// exporter.
type Metrics interface {
	IncRevertCount()
	IncFallbackCount()
}

// CounterMetrics is an in-process Metrics backed by atomic counters,
// suitable for tests and for a minimal default wiring.
type CounterMetrics struct {
	revertCount   int64
	fallbackCount int64
}

// IncRevertCount implements Metrics.
func (m *CounterMetrics) IncRevertCount() { atomic.AddInt64(&m.revertCount, 1) }

// IncFallbackCount implements Metrics.
func (m *CounterMetrics) IncFallbackCount() { atomic.AddInt64(&m.fallbackCount, 1) }

// RevertCount reads the current revert counter.
func (m *CounterMetrics) RevertCount() int64 { return atomic.LoadInt64(&m.revertCount) }

// FallbackCount reads the current fallback counter.
func (m *CounterMetrics) FallbackCount() int64 { return atomic.LoadInt64(&m.fallbackCount) }
