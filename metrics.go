package authgate

import "sync/atomic"

// MetricID defines a public type used by authgate APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricOnboardingOtpSent is an exported constant or variable used by the identity gateway engine.
	MetricOnboardingOtpSent MetricID = iota
	// MetricOnboardingOtpVerified is an exported constant or variable used by the identity gateway engine.
	MetricOnboardingOtpVerified
	// MetricOnboardingPasswordSet is an exported constant or variable used by the identity gateway engine.
	MetricOnboardingPasswordSet
	// MetricOnboardingCompleted is an exported constant or variable used by the identity gateway engine.
	MetricOnboardingCompleted
	// MetricPasswordResetRequest is an exported constant or variable used by the identity gateway engine.
	MetricPasswordResetRequest
	// MetricPasswordResetTokenIssued is an exported constant or variable used by the identity gateway engine.
	MetricPasswordResetTokenIssued
	// MetricPasswordResetSuccess is an exported constant or variable used by the identity gateway engine.
	MetricPasswordResetSuccess
	// MetricPasswordResetFailure is an exported constant or variable used by the identity gateway engine.
	MetricPasswordResetFailure
	// MetricGuardianResetRequest is an exported constant or variable used by the identity gateway engine.
	MetricGuardianResetRequest
	// MetricGuardianResetSuccess is an exported constant or variable used by the identity gateway engine.
	MetricGuardianResetSuccess
	// MetricGuardianResetFailure is an exported constant or variable used by the identity gateway engine.
	MetricGuardianResetFailure
	// MetricPasskeyFallbackIssued is an exported constant or variable used by the identity gateway engine.
	MetricPasskeyFallbackIssued
	// MetricPasskeyFallbackConsumed is an exported constant or variable used by the identity gateway engine.
	MetricPasskeyFallbackConsumed
	// MetricStepUpStarted is an exported constant or variable used by the identity gateway engine.
	MetricStepUpStarted
	// MetricStepUpApproved is an exported constant or variable used by the identity gateway engine.
	MetricStepUpApproved
	// MetricStepUpRejected is an exported constant or variable used by the identity gateway engine.
	MetricStepUpRejected
	// MetricMFAEnrollmentStarted is an exported constant or variable used by the identity gateway engine.
	MetricMFAEnrollmentStarted
	// MetricMFAEnrollmentConfirmed is an exported constant or variable used by the identity gateway engine.
	MetricMFAEnrollmentConfirmed
	// MetricAccountActivated is an exported constant or variable used by the identity gateway engine.
	MetricAccountActivated
	// MetricAccountLocked is an exported constant or variable used by the identity gateway engine.
	MetricAccountLocked
	// MetricAccountUnlocked is an exported constant or variable used by the identity gateway engine.
	MetricAccountUnlocked
	// MetricAccountDeactivated is an exported constant or variable used by the identity gateway engine.
	MetricAccountDeactivated
	// MetricRateLimitHit is an exported constant or variable used by the identity gateway engine.
	MetricRateLimitHit
	// MetricProviderFailure is an exported constant or variable used by the identity gateway engine.
	MetricProviderFailure
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics defines a public type used by authgate APIs.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot defines a public type used by authgate APIs.
//
// MetricsSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
//
// NewMetrics does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
	}
}

// Enabled describes the enabled operation and its observable behavior.
//
// Enabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc describes the inc operation and its observable behavior.
//
// Inc does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value describes the value operation and its observable behavior.
//
// Value does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters: map[MetricID]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, int(metricIDCount)),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	return s
}
