// Package otel bridges the engine's in-process counters onto an
// OpenTelemetry meter. Counters are observed on collection rather than
// pushed, so the engine's hot path never touches the SDK.
package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	authgate "github.com/obsidianbank/authgate"
	"github.com/obsidianbank/authgate/metrics/export/internaldefs"
)

var (
	// ErrNilMeter is an exported constant or variable used by the identity gateway engine.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is an exported constant or variable used by the identity gateway engine.
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() authgate.MetricsSnapshot
	AuditDropped() uint64
}

type observedCounter struct {
	id         authgate.MetricID
	instrument metric.Int64ObservableCounter
}

// Exporter defines a public type used by authgate APIs.
//
// Exporter instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []observedCounter
	auditDropped metric.Int64ObservableCounter
}

// NewExporter registers one observable counter per engine metric plus the
// audit drop counter on the given meter. Close unregisters the callback.
func NewExporter(engine *authgate.Engine, meter metric.Meter) (*Exporter, error) {
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource describes the newexporterfromsource operation and its observable behavior.
//
// NewExporterFromSource may return an error when input validation, dependency calls, or security checks fail.
// NewExporterFromSource does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &Exporter{
		source:   source,
		counters: make([]observedCounter, 0, len(internaldefs.CounterDefs)),
	}

	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+1)

	for _, def := range internaldefs.CounterDefs {
		instrument, err := meter.Int64ObservableCounter(
			def.Name,
			metric.WithDescription(def.Description),
		)
		if err != nil {
			return nil, fmt.Errorf("otel: register %s: %w", def.Name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.ID, instrument: instrument})
		observables = append(observables, instrument)
	}

	auditDropped, err := meter.Int64ObservableCounter(
		"authgate_audit_events_dropped_total",
		metric.WithDescription("Audit events dropped because the dispatch buffer was full"),
	)
	if err != nil {
		return nil, fmt.Errorf("otel: register audit drop counter: %w", err)
	}
	exporter.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	registration, err := meter.RegisterCallback(
		func(_ context.Context, observer metric.Observer) error {
			snapshot := exporter.source.MetricsSnapshot()
			for _, counter := range exporter.counters {
				observer.ObserveInt64(counter.instrument, int64(snapshot.Counters[counter.id]))
			}
			observer.ObserveInt64(exporter.auditDropped, int64(exporter.source.AuditDropped()))
			return nil
		},
		observables...,
	)
	if err != nil {
		return nil, fmt.Errorf("otel: register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
