package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Tutortoise/digit-recognition-service/digits"
)

// Pool defaults, used when the config leaves a value unset.
const (
	DefaultPoolSize   = 4
	AcquireTimeout    = 5 * time.Second
	HealthCheckPeriod = 60 * time.Second
)

var (
	ErrPoolClosed     = errors.New("pool is closed")
	ErrAcquireTimeout = errors.New("timeout waiting for available session")
)

// SessionFactory creates one model session. It is called at startup for every
// pool slot and later to replace discarded sessions.
type SessionFactory func() (digits.Scorer, error)

// ModelSessionPool hands out model sessions for exclusive use. ONNX sessions
// bind a single input/output buffer pair, so each session serves one request
// at a time.
type ModelSessionPool struct {
	sessions       chan digits.Scorer
	size           int
	factory        SessionFactory
	acquireTimeout time.Duration

	mu         sync.Mutex
	closed     bool
	live       int
	done       chan struct{}
	metrics    PoolStats
	lastErrors []error
}

type PoolStats struct {
	Size            int           `json:"pool_size"`
	Live            int           `json:"live_sessions"`
	InUse           int           `json:"sessions_in_use"`
	TotalAcquired   int64         `json:"total_acquired"`
	TotalReleased   int64         `json:"total_released"`
	AcquireFailures int64         `json:"acquire_failures"`
	Discarded       int64         `json:"discarded"`
	WaitTime        time.Duration `json:"wait_time_ns"`
}

func NewModelSessionPool(factory SessionFactory, cfg PoolConfig) (*ModelSessionPool, error) {
	size := cfg.Size
	if size <= 0 {
		size = DefaultPoolSize
	}
	acquireTimeout := cfg.AcquireTimeout
	if acquireTimeout <= 0 {
		acquireTimeout = AcquireTimeout
	}

	pool := &ModelSessionPool{
		sessions:       make(chan digits.Scorer, size),
		size:           size,
		factory:        factory,
		acquireTimeout: acquireTimeout,
		done:           make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		session, err := factory()
		if err != nil {
			pool.Destroy()
			return nil, fmt.Errorf("failed to initialize session %d: %w", i, err)
		}
		pool.live++
		pool.sessions <- session
	}

	if cfg.HealthCheckPeriod > 0 {
		go pool.healthCheck(cfg.HealthCheckPeriod)
	}

	return pool, nil
}

func (p *ModelSessionPool) Acquire(ctx context.Context) (digits.Scorer, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}

	start := time.Now()
	defer func() {
		p.mu.Lock()
		p.metrics.WaitTime += time.Since(start)
		p.mu.Unlock()
	}()

	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()

	select {
	case session, ok := <-p.sessions:
		if !ok {
			return nil, ErrPoolClosed
		}
		p.mu.Lock()
		p.metrics.InUse++
		p.metrics.TotalAcquired++
		p.mu.Unlock()
		return session, nil
	case <-timer.C:
		p.mu.Lock()
		p.metrics.AcquireFailures++
		p.mu.Unlock()
		return nil, ErrAcquireTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *ModelSessionPool) Release(session digits.Scorer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.metrics.InUse--
	p.metrics.TotalReleased++

	if p.closed {
		session.Destroy()
		p.live--
		return
	}
	p.sessions <- session
}

// Discard destroys a session whose inference call failed and puts a fresh
// one in its place. If the replacement cannot be built, the health check
// retries it.
func (p *ModelSessionPool) Discard(session digits.Scorer, cause error) {
	session.Destroy()

	p.mu.Lock()
	p.metrics.InUse--
	p.metrics.Discarded++
	p.live--
	p.recordErrorLocked(cause)
	p.mu.Unlock()

	p.addSession()
}

func (p *ModelSessionPool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.closed = true
	close(p.done)
	close(p.sessions)

	for session := range p.sessions {
		session.Destroy()
		p.live--
	}
}

func (p *ModelSessionPool) healthCheck(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.replenishSessions()
		}
	}
}

// replenishSessions recreates sessions whose replacement failed in Discard.
func (p *ModelSessionPool) replenishSessions() int {
	p.mu.Lock()
	missing := p.size - p.live
	p.mu.Unlock()

	created := 0
	for i := 0; i < missing; i++ {
		if p.addSession() {
			created++
		}
	}
	return created
}

// addSession builds one session and hands it to the pool unless the pool is
// closed or already full.
func (p *ModelSessionPool) addSession() bool {
	session, err := p.factory()
	if err != nil {
		p.mu.Lock()
		p.recordErrorLocked(err)
		p.mu.Unlock()
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.live >= p.size {
		session.Destroy()
		return false
	}
	p.live++
	p.sessions <- session
	return true
}

func (p *ModelSessionPool) recordErrorLocked(err error) {
	if err == nil {
		return
	}
	p.lastErrors = append(p.lastErrors, err)
	if len(p.lastErrors) > 10 {
		p.lastErrors = p.lastErrors[1:]
	}
}

func (p *ModelSessionPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	stats := p.metrics
	stats.Size = p.size
	stats.Live = p.live
	return stats
}

func (p *ModelSessionPool) LastErrors() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.lastErrors))
	for i, err := range p.lastErrors {
		out[i] = err.Error()
	}
	return out
}
