package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("otel exporter: meter is nil")
	ErrNilSource = errors.New("otel exporter: metrics source is nil")
)

// auditDroppedName is shared with the Prometheus exporter.
const auditDroppedName = "authcore_audit_dropped_total"

// MetricsSource is implemented by *authcore.Manager.
type MetricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

type counter struct {
	id  authcore.MetricID
	ins metric.Int64ObservableCounter
}

// histogram is flattened into one gauge per cumulative bucket plus a count,
// readable by backends without native histogram support.
type histogram struct {
	id      authcore.MetricID
	buckets [8]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// Exporter publishes authcore metrics as observable OTel instruments. Every
// collection reads a single snapshot, so counters and buckets agree.
type Exporter struct {
	source       MetricsSource
	counters     []counter
	histograms   []histogram
	auditDropped metric.Int64ObservableCounter
	registration metric.Registration
}

// NewExporter creates the instruments on meter and registers one callback
// that fills them. Close unregisters the callback.
func NewExporter(meter metric.Meter, source MetricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var all []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("otel exporter: counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counter{id: def.ID, ins: ins})
		all = append(all, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h, err := newHistogram(meter, def)
		if err != nil {
			return nil, err
		}
		e.histograms = append(e.histograms, h)
		for _, b := range h.buckets {
			all = append(all, b)
		}
		all = append(all, h.count)
	}

	dropped, err := meter.Int64ObservableCounter(auditDroppedName,
		metric.WithDescription("Audit events discarded because the dispatcher queue was full."))
	if err != nil {
		return nil, fmt.Errorf("otel exporter: counter %s: %w", auditDroppedName, err)
	}
	e.auditDropped = dropped
	all = append(all, dropped)

	reg, err := meter.RegisterCallback(e.observe, all...)
	if err != nil {
		return nil, fmt.Errorf("otel exporter: register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func newHistogram(meter metric.Meter, def internaldefs.HistogramDef) (histogram, error) {
	h := histogram{id: def.ID}
	for i, suffix := range internaldefs.HistogramBoundSuffix {
		name := def.Name + "_bucket_le_" + suffix
		g, err := meter.Int64ObservableGauge(name,
			metric.WithDescription(def.Help+" Cumulative samples at or below the bound."))
		if err != nil {
			return h, fmt.Errorf("otel exporter: gauge %s: %w", name, err)
		}
		h.buckets[i] = g
	}

	name := def.Name + "_count"
	g, err := meter.Int64ObservableGauge(name, metric.WithDescription(def.Help+" Sample count."))
	if err != nil {
		return h, fmt.Errorf("otel exporter: gauge %s: %w", name, err)
	}
	h.count = g
	return h, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()

	for _, c := range e.counters {
		o.ObserveInt64(c.ins, int64(snap.Counters[c.id]))
	}
	for _, h := range e.histograms {
		cum := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[h.id]))
		for i, g := range h.buckets {
			o.ObserveInt64(g, int64(cum[i]))
		}
		o.ObserveInt64(h.count, int64(cum[len(cum)-1]))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback. It is safe on a nil Exporter.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
