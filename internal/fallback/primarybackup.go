// Package fallback implements the primary/backup composition used by both
// the LLM adapter layer and the long-term memory store: a generic wrapper
// around a pair of implementations that reuses one policy, one set of
// statistics, and one latching rule across both subsystems.
package fallback

import (
	"sync"
	"sync/atomic"
)

// Policy controls whether/when a failed primary call is retried on the backup.
type Policy string

const (
	// FailFast never falls back; primary errors propagate directly.
	FailFast Policy = "fail_fast"
	// FallbackOnce retries once on the backup after a primary failure but
	// does not latch — the next call tries the primary again.
	FallbackOnce Policy = "fallback_once"
	// AlwaysFallback retries on the backup and latches: once the backup is
	// used, subsequent calls go straight to it for the life of the process.
	AlwaysFallback Policy = "always_fallback"
)

// Stats are the per-call statistics tracked across both primary and backup.
type Stats struct {
	PrimarySuccess int64
	PrimaryFailure int64
	BackupSuccess  int64
	BackupFailure  int64
	LastError      string
	UsingFallback  bool
}

// Snapshot is an immutable copy of Stats safe to read without the lock.
type Snapshot = Stats

// PrimaryBackup composes two implementations of T behind one call-dispatch
// policy. T is typically a function type or a small interface; the call
// site provides a closure invoking whichever delegate it's handed.
type PrimaryBackup[T any] struct {
	Primary T
	Backup  T
	Policy  Policy

	mu      sync.Mutex
	latched bool
	stats   Stats
}

// New creates a PrimaryBackup composing primary and backup under policy.
func New[T any](primary, backup T, policy Policy) *PrimaryBackup[T] {
	if policy == "" {
		policy = FallbackOnce
	}
	return &PrimaryBackup[T]{Primary: primary, Backup: backup, Policy: policy}
}

// Latched reports whether the backup is currently latched in (no
// auto-recovery within the process lifetime).
func (p *PrimaryBackup[T]) Latched() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latched
}

// ForceLatch latches the backup in immediately, e.g. because primary
// construction failed at init time.
func (p *PrimaryBackup[T]) ForceLatch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latched = true
	p.stats.UsingFallback = true
}

// Stats returns a snapshot of the current statistics.
func (p *PrimaryBackup[T]) Stats() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Call runs try against whichever delegate current policy/latch state
// dictates, recording statistics. ephemeral, when true (used by read paths
// like memory recall), means a primary failure routes to the backup for
// this call only without latching — the caller passes this explicitly
// because the same PrimaryBackup is shared between writes (which latch)
// and reads (which may not, depending on the subsystem's policy).
func Call[T any, R any](p *PrimaryBackup[T], ephemeral bool, try func(delegate T) (R, error)) (R, error) {
	p.mu.Lock()
	useBackupFirst := p.latched && p.Policy != FailFast
	p.mu.Unlock()

	var zero R
	if useBackupFirst {
		r, err := try(p.Backup)
		p.record(false, err)
		return r, err
	}

	r, err := try(p.Primary)
	if err == nil {
		p.record(true, nil)
		return r, nil
	}
	p.record(true, err)

	if p.Policy == FailFast {
		return zero, err
	}

	r, backupErr := try(p.Backup)
	p.record(false, backupErr)
	if backupErr != nil {
		return zero, backupErr
	}

	if !ephemeral && p.Policy == AlwaysFallback {
		p.mu.Lock()
		p.latched = true
		p.stats.UsingFallback = true
		p.mu.Unlock()
	}
	return r, nil
}

func (p *PrimaryBackup[T]) record(primary bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if primary {
		if err == nil {
			atomicIncr(&p.stats.PrimarySuccess)
		} else {
			atomicIncr(&p.stats.PrimaryFailure)
			p.stats.LastError = err.Error()
		}
	} else {
		if err == nil {
			atomicIncr(&p.stats.BackupSuccess)
		} else {
			atomicIncr(&p.stats.BackupFailure)
			p.stats.LastError = err.Error()
		}
	}
}

func atomicIncr(v *int64) {
	atomic.AddInt64(v, 1)
}
