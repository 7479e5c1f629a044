package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/i474232898/farm-dashboard/internal/geo"
	"github.com/i474232898/farm-dashboard/internal/metrics"
	"github.com/i474232898/farm-dashboard/internal/scheduler"
)

// ErrSessionNotFound is returned for unknown or closed session ids.
var ErrSessionNotFound = errors.New("dashboard session not found")

const (
	// DefaultPollInterval is how often a session reloads its crop list.
	DefaultPollInterval = 60 * time.Second

	sweepTag = "sessions:sweep"
)

// OpenRequest describes a dashboard to mount.
type OpenRequest struct {
	UserID   string
	Language string
	// Device is the client's geolocation capability; nil means the client
	// has none.
	Device geo.Geolocator
}

// Manager owns the mounted sessions and their pollers.
type Manager struct {
	deps         Deps
	sched        *scheduler.Scheduler
	pollInterval time.Duration
	idleTTL      time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a Manager. A nil scheduler disables pollers, which suits
// one-shot use such as the snapshot command.
func NewManager(deps Deps, sched *scheduler.Scheduler, pollInterval, idleTTL time.Duration) *Manager {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if deps.BaseLanguage == "" {
		deps.BaseLanguage = "en"
	}
	return &Manager{
		deps:         deps,
		sched:        sched,
		pollInterval: pollInterval,
		idleTTL:      idleTTL,
		sessions:     make(map[string]*Session),
	}
}

func pollTag(id string) string {
	return "crops:" + id
}

// Open mounts a new session and starts its crop poller.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	lang := req.Language
	if lang == "" {
		lang = m.deps.BaseLanguage
	}

	s := newSession(uuid.NewString(), req.UserID, lang, req.Device, m.deps)
	s.Mount(ctx)

	if m.sched != nil {
		if err := m.sched.Every(pollTag(s.id), m.pollInterval, s.Poll); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	metrics.ActiveSessions.Inc()

	klog.FromContext(ctx).Info("dashboard session opened", "session", s.id, "user", s.userID, "lang", lang)
	return s, nil
}

// Get returns a mounted session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close tears a session down and cancels its poller.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	metrics.ActiveSessions.Dec()
	if m.sched != nil {
		if err := m.sched.Remove(pollTag(id)); err != nil {
			klog.FromContext(ctx).Error(err, "removing crop poller", "session", id)
		}
	}
	klog.FromContext(ctx).Info("dashboard session closed", "session", id)
	return nil
}

// Sweep closes sessions idle for longer than the idle TTL and returns how
// many it closed. A zero TTL keeps sessions forever.
func (m *Manager) Sweep(ctx context.Context, now time.Time) int {
	if m.idleTTL <= 0 {
		return 0
	}

	m.mu.RLock()
	var idle []string
	for id, s := range m.sessions {
		if now.Sub(s.IdleSince()) > m.idleTTL {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	closed := 0
	for _, id := range idle {
		if m.Close(ctx, id) == nil {
			closed++
		}
	}
	return closed
}

// StartSweeper schedules Sweep. It is a no-op without a scheduler or TTL.
func (m *Manager) StartSweeper() error {
	if m.sched == nil || m.idleTTL <= 0 {
		return nil
	}
	interval := m.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	return m.sched.Every(sweepTag, interval, func(ctx context.Context) {
		if n := m.Sweep(ctx, m.deps.now()); n > 0 {
			klog.FromContext(ctx).Info("swept idle dashboard sessions", "count", n)
		}
	})
}

// CloseAll tears every session down.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		_ = m.Close(ctx, id)
	}
}

// Len returns the number of mounted sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
