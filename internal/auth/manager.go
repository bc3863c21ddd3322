package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrNotAuthenticated indicates an operation needs a signed-in user and there is none.
	ErrNotAuthenticated = errors.New("no signed-in user")
	// ErrSessionNotFound indicates the store holds no persisted session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates the identity token has expired.
	ErrSessionExpired = errors.New("session expired")
	// ErrReauthUnavailable indicates no reauthenticator was configured.
	ErrReauthUnavailable = errors.New("reauthentication unavailable")
)

// SessionStore persists the signed-in session so it survives restarts.
type SessionStore interface {
	Save(ctx context.Context, session Session) error
	Load(ctx context.Context) (Session, error)
	Delete(ctx context.Context) error
}

// Reauthenticator confirms the user's credentials before sensitive changes
// such as an email or password change.
type Reauthenticator interface {
	Reauthenticate(ctx context.Context, email, password string) error
}

// Session is the identity provider's view of the signed-in user.
type Session struct {
	UserID    string
	Email     string
	Token     string
	ExpiresAt time.Time
}

// Expired reports whether the session's token is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Event describes a session change.
type Event int

const (
	// SignedIn fires when a token is adopted.
	SignedIn Event = iota
	// SignedOut fires when the session is dropped.
	SignedOut
	// Restored fires when a persisted session is loaded at start.
	Restored
)

func (e Event) String() string {
	switch e {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	case Restored:
		return "restored"
	default:
		return "unknown"
	}
}

// Manager tracks the current user and notifies subscribers when it changes.
type Manager struct {
	store  SessionStore
	reauth Reauthenticator
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	current   *Session
	nextID    int
	listeners map[int]func(Event, Session)
}

// NewManager constructs a Manager backed by store. reauth may be nil.
func NewManager(store SessionStore, reauth Reauthenticator, logger *slog.Logger) *Manager {
	if store == nil {
		panic("auth: session store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     store,
		reauth:    reauth,
		logger:    logger,
		now:       time.Now,
		listeners: make(map[int]func(Event, Session)),
	}
}

// Restore loads a persisted session, dropping it when expired.
func (m *Manager) Restore(ctx context.Context) error {
	session, err := m.store.Load(ctx)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if session.Expired(m.now()) {
		m.logger.Info("persisted session expired", "user_id", session.UserID)
		return m.store.Delete(ctx)
	}

	m.set(&session)
	m.notify(Restored, session)
	return nil
}

// SignIn adopts the identity token issued by the provider.
func (m *Manager) SignIn(ctx context.Context, token string) (Session, error) {
	session, err := ParseToken(token)
	if err != nil {
		return Session{}, err
	}
	if session.Expired(m.now()) {
		return Session{}, ErrSessionExpired
	}

	if err := m.store.Save(ctx, session); err != nil {
		return Session{}, err
	}

	m.set(&session)
	m.logger.Info("signed in", "user_id", session.UserID)
	m.notify(SignedIn, session)
	return session, nil
}

// SignOut forgets the current session.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	previous := m.current
	m.current = nil
	m.mu.Unlock()

	if err := m.store.Delete(ctx); err != nil {
		return err
	}
	if previous == nil {
		return nil
	}

	m.logger.Info("signed out", "user_id", previous.UserID)
	m.notify(SignedOut, *previous)
	return nil
}

// Current returns the signed-in session. An expired session counts as none.
func (m *Manager) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil || m.current.Expired(m.now()) {
		return Session{}, false
	}
	return *m.current, true
}

// UserID returns the signed-in user's id or ErrNotAuthenticated.
func (m *Manager) UserID() (string, error) {
	session, ok := m.Current()
	if !ok {
		return "", ErrNotAuthenticated
	}
	return session.UserID, nil
}

// Token returns the bearer token for backend calls. Requests made without a
// signed-in user carry no token.
func (m *Manager) Token(context.Context) (string, error) {
	session, ok := m.Current()
	if !ok {
		return "", nil
	}
	return session.Token, nil
}

// Reauthenticate confirms the current user's password.
func (m *Manager) Reauthenticate(ctx context.Context, password string) error {
	session, ok := m.Current()
	if !ok {
		return ErrNotAuthenticated
	}
	if m.reauth == nil {
		return ErrReauthUnavailable
	}
	return m.reauth.Reauthenticate(ctx, session.Email, password)
}

// Subscribe registers fn for session changes and returns a function removing it.
func (m *Manager) Subscribe(fn func(Event, Session)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// WithNowFunc allows tests to override the time source.
func (m *Manager) WithNowFunc(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Manager) set(session *Session) {
	m.mu.Lock()
	m.current = session
	m.mu.Unlock()
}

func (m *Manager) notify(event Event, session Session) {
	m.mu.RLock()
	listeners := make([]func(Event, Session), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.RUnlock()

	for _, fn := range listeners {
		fn(event, session)
	}
}
