// Package session tracks the signed-in identity for the editor.
//
// A Manager owns at most one live subscription to the identity provider and
// republishes every identity change on a broker. The current identity is
// exposed as a snapshot pointer that is replaced wholesale on every change,
// so readers never observe a half-updated identity.
package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rumor-ml/deckhand/internal/log"
	"github.com/rumor-ml/deckhand/internal/pubsub"
)

// Identity is one signed-in user as reported by the provider.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
}

// ErrProviderNotReady is returned by providers that have not finished their
// own startup. The Manager retries attachment on exactly this condition.
var ErrProviderNotReady = errors.New("identity provider not ready")

// Provider is the consumed identity-provider surface.
type Provider interface {
	// OnChange registers a callback fired on every identity change and
	// returns a function that removes the registration. A nil identity
	// means signed out.
	OnChange(fn func(*Identity)) (unsubscribe func(), err error)

	// Current returns the identity as of now, or nil when signed out.
	Current() *Identity
}

// Event types published on the Manager's broker.
const (
	EventChanged pubsub.EventType = "session.changed"
	EventWarning pubsub.EventType = "session.warning"
)

// Event is the payload for session broker events.
type Event struct {
	Identity *Identity // nil when signed out; unset for warnings
	Message  string    // set for warnings
}

// Defaults for the attach retry schedule.
const (
	DefaultMaxAttempts  = 5
	DefaultRetryBase    = 100 * time.Millisecond
	retryBackoffFactor  = 2
	maxRetryBackoffStep = 5 * time.Second
)

// Manager owns the provider subscription lifecycle.
type Manager struct {
	provider    Provider
	broker      *pubsub.Broker[Event]
	maxAttempts int
	retryBase   time.Duration

	snapshot atomic.Pointer[Identity]

	mu          sync.Mutex
	unsubscribe func()
	retryTimer  *time.Timer
	generation  uint64 // invalidates scheduled retries from older Attach calls
}

// Option configures a Manager.
type Option func(*Manager)

// WithRetrySchedule overrides the attach retry bounds.
func WithRetrySchedule(maxAttempts int, base time.Duration) Option {
	return func(m *Manager) {
		if maxAttempts > 0 {
			m.maxAttempts = maxAttempts
		}
		if base > 0 {
			m.retryBase = base
		}
	}
}

// NewManager creates a Manager over the given provider. No subscription
// exists until Attach is called.
func NewManager(provider Provider, opts ...Option) *Manager {
	m := &Manager{
		provider:    provider,
		broker:      pubsub.NewBroker[Event](),
		maxAttempts: DefaultMaxAttempts,
		retryBase:   DefaultRetryBase,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Broker returns the broker session events are published on.
func (m *Manager) Broker() *pubsub.Broker[Event] { return m.broker }

// Snapshot returns the current identity, or nil when signed out or unknown.
// The returned value is never mutated after publication.
func (m *Manager) Snapshot() *Identity { return m.snapshot.Load() }

// Attach subscribes to the provider. It is idempotent: an existing
// subscription is detached first, so N calls leave exactly one live
// subscription. If the provider is not ready yet, attachment is retried
// with exponential backoff up to the configured attempt bound; exhaustion
// publishes a warning event instead of failing the host.
func (m *Manager) Attach() {
	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.cancelRetryLocked()
	m.detachLocked()
	m.mu.Unlock()

	m.attach(gen, 1)
}

// Detach removes the live subscription, if any. Errors from the provider
// are swallowed and logged; Detach never fails.
func (m *Manager) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.cancelRetryLocked()
	m.detachLocked()
}

func (m *Manager) attach(gen uint64, attempt int) {
	unsubscribe, err := m.provider.OnChange(m.onIdentity)
	if err == nil {
		m.mu.Lock()
		if gen != m.generation {
			// A newer Attach or Detach superseded this one.
			m.mu.Unlock()
			safeUnsubscribe(unsubscribe)
			return
		}
		m.unsubscribe = unsubscribe
		m.mu.Unlock()

		// Seed the snapshot without publishing: only real identity changes
		// notify subscribers.
		m.snapshot.Store(m.provider.Current())
		log.Info(log.CatSession, "identity subscription attached", "attempt", attempt)
		return
	}

	if !errors.Is(err, ErrProviderNotReady) {
		log.Error(log.CatSession, "identity subscription failed", "error", err)
		m.broker.Publish(EventWarning, Event{Message: "Could not connect to the identity provider. Refresh to retry."})
		return
	}

	if attempt >= m.maxAttempts {
		log.Warn(log.CatSession, "identity provider never became ready", "attempts", attempt)
		m.broker.Publish(EventWarning, Event{Message: "Identity provider is unavailable. Refresh to retry."})
		return
	}

	delay := m.retryBase
	for i := 1; i < attempt; i++ {
		delay *= retryBackoffFactor
		if delay >= maxRetryBackoffStep {
			delay = maxRetryBackoffStep
			break
		}
	}
	log.Debug(log.CatSession, "identity provider not ready, retrying", "attempt", attempt, "delay", delay)

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	m.retryTimer = time.AfterFunc(delay, func() {
		m.attach(gen, attempt+1)
	})
	m.mu.Unlock()
}

// onIdentity replaces the snapshot wholesale and republishes the change.
func (m *Manager) onIdentity(id *Identity) {
	m.snapshot.Store(id)
	m.broker.Publish(EventChanged, Event{Identity: id})
}

func (m *Manager) detachLocked() {
	if m.unsubscribe == nil {
		return
	}
	safeUnsubscribe(m.unsubscribe)
	m.unsubscribe = nil
}

func (m *Manager) cancelRetryLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}

// safeUnsubscribe calls the provider's unsubscribe function, containing any
// panic. Detach failures are log-only.
func safeUnsubscribe(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn(log.CatSession, "unsubscribe panicked", "panic", r)
		}
	}()
	fn()
}
