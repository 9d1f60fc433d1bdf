// Package csrf issues per-client anti-forgery tokens and checks request
// origins for state-changing routes.
package csrf

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gatehouse/pkg/secrets"
)

const (
	tokenBytes = 32
	DefaultTTL = time.Hour
)

type record struct {
	token   string
	expires time.Time
}

// Manager holds at most one live token per session fingerprint.
type Manager struct {
	mu      sync.Mutex
	tokens  map[string]record
	ttl     time.Duration
	clock   func() time.Time
	metrics *Metrics
	logger  *slog.Logger
}

type Option func(*Manager)

func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		tokens: make(map[string]record),
		ttl:    DefaultTTL,
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GenerateToken issues a fresh 64-character hex token for sessionID,
// replacing any previous one, and sweeps expired tokens.
func (m *Manager) GenerateToken(ctx context.Context, sessionID string) (string, error) {
	token, err := secrets.TokenHex(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}

	now := m.clock()
	m.mu.Lock()
	m.tokens[sessionID] = record{token: token, expires: now.Add(m.ttl)}
	removed := m.sweepLocked(now)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.TokensIssued.Inc()
		m.metrics.Swept.Add(float64(removed))
	}
	if removed > 0 {
		m.logger.DebugContext(ctx, "csrf tokens swept on issue", "removed", removed)
	}
	return token, nil
}

// ValidateToken reports whether candidate is sessionID's live token. An
// expired token is deleted. Tokens stay valid until they expire.
func (m *Manager) ValidateToken(_ context.Context, sessionID, candidate string) bool {
	now := m.clock()

	m.mu.Lock()
	rec, ok := m.tokens[sessionID]
	if ok && now.After(rec.expires) {
		delete(m.tokens, sessionID)
		ok = false
	}
	m.mu.Unlock()

	valid := ok && subtle.ConstantTimeCompare([]byte(rec.token), []byte(candidate)) == 1
	m.observe(valid)
	return valid
}

// Cleanup removes every expired token.
func (m *Manager) Cleanup(_ context.Context) (int, error) {
	m.mu.Lock()
	removed := m.sweepLocked(m.clock())
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.Swept.Add(float64(removed))
	}
	return removed, nil
}

// Len returns the number of stored tokens.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

func (m *Manager) sweepLocked(now time.Time) int {
	removed := 0
	for id, rec := range m.tokens {
		if now.After(rec.expires) {
			delete(m.tokens, id)
			removed++
		}
	}
	return removed
}

func (m *Manager) observe(valid bool) {
	if m.metrics == nil {
		return
	}
	if valid {
		m.metrics.Validations.WithLabelValues("valid").Inc()
	} else {
		m.metrics.Validations.WithLabelValues("invalid").Inc()
	}
}
