package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"crypto-trading-dashboard/internal/config"
	"crypto-trading-dashboard/internal/docstore"
	"crypto-trading-dashboard/internal/identity"
	"crypto-trading-dashboard/internal/models"

	"go.uber.org/zap"
)

var errNoUID = errors.New("principal has no uid")

// EventSource publishes sign-in and sign-out events.
type EventSource interface {
	Watch() (<-chan identity.Event, func())
}

// Manager owns one Session per signed-in principal. Sign-in (re)starts the principal's
// session, sign-out closes it and releases its subscriptions.
type Manager struct {
	store    docstore.Store
	events   EventSource
	logger   *zap.Logger
	toastTTL time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool

	stopEvents context.CancelFunc
	wg         sync.WaitGroup
}

// NewManager creates a manager.
func NewManager(cfg *config.Config, store docstore.Store, events EventSource, logger *zap.Logger) *Manager {
	return &Manager{
		store:    store,
		events:   events,
		logger:   logger.Named("dashboard"),
		toastTTL: cfg.Dashboard.ToastTTL(),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Start follows auth events until ctx is done.
func (m *Manager) Start(ctx context.Context) {
	ctx, stop := context.WithCancel(ctx)
	m.mu.Lock()
	m.stopEvents = stop
	m.mu.Unlock()

	events, cancel := m.events.Watch()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				m.handle(ctx, ev)
			}
		}
	}()
}

func (m *Manager) handle(ctx context.Context, ev identity.Event) {
	uid := ev.Principal.UID
	if !ev.SignedIn {
		m.logger.Info("Principal signed out", zap.String("uid", uid))
		m.closeSession(uid)
		return
	}

	m.logger.Info("Principal signed in", zap.String("uid", uid), zap.String("provider", ev.Principal.Provider))
	if err := m.EnsureProfile(ctx, ev.Principal); err != nil {
		m.logger.Error("Failed to ensure profile", zap.String("uid", uid), zap.Error(err))
	}

	m.mu.Lock()
	existing := m.sessions[uid]
	m.mu.Unlock()
	if existing != nil {
		if err := existing.Reload(); err != nil {
			m.logger.Warn("Failed to reload session", zap.String("uid", uid), zap.Error(err))
		}
		return
	}
	if _, err := m.Session(ctx, ev.Principal); err != nil {
		m.logger.Error("Failed to start session", zap.String("uid", uid), zap.Error(err))
	}
}

// EnsureProfile writes users/{uid} on a principal's first sign-in.
func (m *Manager) EnsureProfile(ctx context.Context, principal identity.Principal) error {
	_, err := m.store.Get(ctx, models.CollectionUsers, principal.UID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	fields := models.NewUserProfileFields(principal.UID, principal.Email, principal.PhoneNumber, m.now())
	if err := m.store.Set(ctx, models.CollectionUsers, principal.UID, principal.UID, fields); err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	m.logger.Info("Profile created", zap.String("uid", principal.UID))
	return nil
}

// Session returns the principal's session, starting it on first use.
func (m *Manager) Session(ctx context.Context, principal identity.Principal) (*Session, error) {
	if principal.UID == "" {
		return nil, errNoUID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrSessionClosed
	}
	if s, ok := m.sessions[principal.UID]; ok {
		return s, nil
	}

	s := NewSession(principal, m.store, m.toastTTL, m.logger)
	m.sessions[principal.UID] = s
	m.logger.Debug("Session started", zap.String("uid", principal.UID))
	return s, nil
}

// Open ensures the principal's profile and returns its session.
func (m *Manager) Open(ctx context.Context, principal identity.Principal) (*Session, error) {
	if principal.UID == "" {
		return nil, errNoUID
	}
	if err := m.EnsureProfile(ctx, principal); err != nil {
		return nil, err
	}
	return m.Session(ctx, principal)
}

// Lookup returns the running session of uid, if any.
func (m *Manager) Lookup(uid string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[uid]
	return s, ok
}

// ActiveSessions returns how many sessions are running.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) closeSession(uid string) {
	m.mu.Lock()
	s, ok := m.sessions[uid]
	delete(m.sessions, uid)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Close stops following auth events and ends every session.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	stop := m.stopEvents
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	m.wg.Wait()
	for _, s := range sessions {
		s.Close()
	}
}
