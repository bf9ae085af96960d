package authgate

import (
	"context"
	"sync"

	"github.com/obsidianbank/authgate/internal/stores"
)

// Engine defines a public type used by authgate APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config    Config
	directory UserDirectory
	otp       OtpVerificationGateway
	identity  IdentityGateway

	resetTokens     *stores.TokenStore
	fallbackMarkers *stores.TokenStore

	audit   *auditDispatcher
	metrics *Metrics

	accountLocks keyedMutex
}

// Close describes the close operation and its observable behavior.
//
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters: map[MetricID]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// lookupByLoginID fetches the account of record, normalizing directory
// errors onto the engine's sentinel.
func (e *Engine) lookupByLoginID(ctx context.Context, loginID string) (*UserAccount, error) {
	account, err := e.directory.FindByLoginID(ctx, loginID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrUserNotFound
	}
	return account, nil
}

func (e *Engine) lookupByEmail(ctx context.Context, email string) (*UserAccount, error) {
	account, err := e.directory.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrUserNotFound
	}
	return account, nil
}

// mutateAccount reloads, mutates, and saves an account while holding the
// per-login-ID lock, so two flows touching the same account serialize on
// their read-modify-write instead of clobbering each other.
func (e *Engine) mutateAccount(ctx context.Context, loginID string, mutate func(*UserAccount) error) (*UserAccount, error) {
	unlock := e.accountLocks.lock(loginID)
	defer unlock()

	account, err := e.lookupByLoginID(ctx, loginID)
	if err != nil {
		return nil, err
	}
	if err := mutate(account); err != nil {
		return nil, err
	}
	if err := e.directory.Save(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex hands out one mutex per key, dropping entries once the last
// holder releases so the map does not grow with the user population.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*accountLock
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*accountLock)
	}
	entry := k.locks[key]
	if entry == nil {
		entry = &accountLock{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
