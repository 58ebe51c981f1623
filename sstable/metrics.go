package sstable

import (
	"context"
	"time"

	"github.com/KevoDB/kevo/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Metrics defines the telemetry operations a table builder and reader
// report. All methods are optional to observe: implementations can
// safely be no-op.
type Metrics interface {
	telemetry.ComponentMetrics

	// RecordFlush records a data block being written out by the
	// builder, including whether it was stored compressed.
	RecordFlush(ctx context.Context, duration time.Duration, rawSize, storedSize int, compressed bool)

	// RecordBuild records a whole table's construction finishing.
	RecordBuild(ctx context.Context, duration time.Duration, fileSize int64, entries int)

	// RecordGet records a point lookup against an open table.
	RecordGet(ctx context.Context, duration time.Duration, found bool, filterRejected bool)

	// RecordCorruption records a checksum or structural failure
	// detected while reading a table.
	RecordCorruption(ctx context.Context, reason string)
}

type metrics struct {
	tel telemetry.Telemetry
}

// NewMetrics creates a Metrics implementation backed by tel. A nil tel
// yields a no-op implementation.
func NewMetrics(tel telemetry.Telemetry) Metrics {
	if tel == nil {
		return &noopMetrics{}
	}
	return &metrics{tel: tel}
}

// NewNoopMetrics creates a no-op Metrics implementation, useful in tests
// that don't care about telemetry output.
func NewNoopMetrics() Metrics {
	return &noopMetrics{}
}

func (m *metrics) RecordFlush(ctx context.Context, duration time.Duration, rawSize, storedSize int, compressed bool) {
	m.tel.RecordHistogram(ctx, "kevo.sstable.flush.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentSSTable),
		attribute.Bool("compressed", compressed),
	)
	m.tel.RecordCounter(ctx, "kevo.sstable.flush.raw_bytes", int64(rawSize),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentSSTable),
	)
	m.tel.RecordCounter(ctx, "kevo.sstable.flush.stored_bytes", int64(storedSize),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentSSTable),
		attribute.Bool("compressed", compressed),
	)
}

func (m *metrics) RecordBuild(ctx context.Context, duration time.Duration, fileSize int64, entries int) {
	m.tel.RecordHistogram(ctx, "kevo.sstable.build.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentSSTable),
	)
	m.tel.RecordCounter(ctx, "kevo.sstable.build.bytes", fileSize,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentSSTable),
	)
	m.tel.RecordCounter(ctx, "kevo.sstable.build.entries", int64(entries),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentSSTable),
	)
}

func (m *metrics) RecordGet(ctx context.Context, duration time.Duration, found, filterRejected bool) {
	status := telemetry.StatusSuccess
	if !found {
		status = telemetry.StatusError
	}
	m.tel.RecordHistogram(ctx, "kevo.sstable.get.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentSSTable),
		attribute.String(telemetry.AttrStatus, status),
		attribute.Bool("filter_rejected", filterRejected),
	)
	m.tel.RecordCounter(ctx, "kevo.sstable.get.total", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentSSTable),
		attribute.String(telemetry.AttrStatus, status),
	)
}

func (m *metrics) RecordCorruption(ctx context.Context, reason string) {
	m.tel.RecordCounter(ctx, "kevo.sstable.corruption.total", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentSSTable),
		attribute.String("reason", reason),
	)
}

func (m *metrics) Close() error { return nil }

// noopMetrics discards every call. Used when telemetry is disabled or
// in tests that don't assert on it.
type noopMetrics struct{}

func (noopMetrics) RecordFlush(context.Context, time.Duration, int, int, bool) {}
func (noopMetrics) RecordBuild(context.Context, time.Duration, int64, int)     {}
func (noopMetrics) RecordGet(context.Context, time.Duration, bool, bool)       {}
func (noopMetrics) RecordCorruption(context.Context, string)                  {}
func (noopMetrics) Close() error                                              { return nil }
