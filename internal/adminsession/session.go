// Package adminsession gates the admin dashboard. A successful login issues
// a JWT and creates a server-side session object carrying the state the
// dashboard flows share: the draft vehicle list and the personnel id the
// vehicle modal is currently scoped to.
package adminsession

import (
	"errors"
	"sync"
	"time"

	"github.com/CredencialAcceso/CredencialAcceso/internal/common/auth"
	"github.com/CredencialAcceso/CredencialAcceso/internal/common/config"
	"github.com/CredencialAcceso/CredencialAcceso/internal/draft"
	"github.com/google/uuid"
)

var (
	// ErrBadPassword the entered password does not match the configured one.
	ErrBadPassword = errors.New("contraseña incorrecta")
	// ErrNoSession the token's session was revoked or expired.
	ErrNoSession = errors.New("sesión no encontrada")
	// ErrNoSelection a vehicle-modal operation ran with no scoped person.
	ErrNoSelection = errors.New("ningún personal seleccionado")
)

// Session is one admin's dashboard state.
type Session struct {
	ID        string
	ExpiresAt time.Time

	mu       sync.Mutex
	draft    draft.VehicleList
	selected string // personnel id the vehicle modal is scoped to
}

// SelectPersonnel scopes the vehicle modal to a person.
func (s *Session) SelectPersonnel(personnelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = personnelID
}

// ClearSelection drops the modal scope. Subsequent scoped operations fail
// with ErrNoSelection instead of acting on stale state.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = ""
}

// Selected returns the scoped personnel id.
func (s *Session) Selected() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == "" {
		return "", ErrNoSelection
	}
	return s.selected, nil
}

// AddDraftPPU validates and appends a plate to the draft list.
func (s *Session) AddDraftPPU(raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Add(raw)
}

// RemoveDraftPPU removes the draft entry at position i.
func (s *Session) RemoveDraftPPU(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Remove(i)
}

// DraftPPUs returns the current draft snapshot.
func (s *Session) DraftPPUs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.PPUs()
}

// TakeDraft snapshots and clears the draft in one step, for submit.
func (s *Session) TakeDraft() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.draft.PPUs()
	s.draft.Clear()
	return out
}

// RestoreDraft puts a taken snapshot back (submit was rejected before
// anything was persisted).
func (s *Session) RestoreDraft(ppus []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Clear()
	for _, p := range ppus {
		_ = s.draft.Add(p)
	}
}

// Manager owns the live sessions. Sessions live in memory only: restarting
// the service logs every admin out, which is the session-scoped contract.
type Manager struct {
	cfg config.AuthConfig
	ttl time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(cfg config.AuthConfig) *Manager {
	ttl := time.Duration(cfg.TokenTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{
		cfg:      cfg,
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

// Login verifies the shared admin password and, on match, issues a token
// bound to a fresh session.
func (m *Manager) Login(password string) (token string, expiresAt time.Time, err error) {
	if !auth.VerifyAdminPassword(m.cfg, password) {
		return "", time.Time{}, ErrBadPassword
	}

	sessionID := uuid.NewString()
	token, expiresAt, err = auth.GenerateAccessToken(m.cfg, sessionID, []string{"admin"}, m.ttl)
	if err != nil {
		return "", time.Time{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgeExpiredLocked()
	m.sessions[sessionID] = &Session{ID: sessionID, ExpiresAt: expiresAt}
	return token, expiresAt, nil
}

// Get resolves a session by the token subject.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || time.Now().After(s.ExpiresAt) {
		if ok {
			delete(m.sessions, sessionID)
		}
		return nil, ErrNoSession
	}
	return s, nil
}

// Logout revokes the session. A token for a revoked session no longer
// resolves, whatever its JWT expiry says.
func (m *Manager) Logout(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Active reports the number of live sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgeExpiredLocked()
	return len(m.sessions)
}

func (m *Manager) purgeExpiredLocked() {
	now := time.Now()
	for id, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			delete(m.sessions, id)
		}
	}
}
