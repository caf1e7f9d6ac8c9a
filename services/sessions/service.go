package sessions

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"reeltrack/internal/jsonfile"
	"reeltrack/models"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrInvalidToken    = errors.New("invalid token")
)

const (
	// DefaultSessionDuration is the default lifetime of a session.
	DefaultSessionDuration = 30 * 24 * time.Hour

	// DefaultCleanupInterval is how often Run sweeps expired sessions.
	DefaultCleanupInterval = time.Hour

	// TokenLength is the number of random bytes used for session tokens.
	TokenLength = 32
)

// Service manages bearer tokens for local accounts.
//
// sessions.json is shared with the CLI, which revokes tokens when an account
// is deleted or its password changes. The in-memory copy is re-read whenever
// the file changes and always before a write.
type Service struct {
	mu              sync.Mutex
	fs              afero.Fs
	path            string
	version         jsonfile.Version
	sessions        map[string]models.Session
	gone            []string // removed outside Cleanup; reported by the next Cleanup
	sessionDuration time.Duration
	now             func() time.Time
}

// NewService creates a sessions service persisting to sessions.json in storageDir.
// A nil fs or empty storageDir keeps sessions in memory only.
func NewService(fs afero.Fs, storageDir string, sessionDuration time.Duration) (*Service, error) {
	if sessionDuration <= 0 {
		sessionDuration = DefaultSessionDuration
	}

	svc := &Service{
		fs:              fs,
		sessions:        make(map[string]models.Session),
		sessionDuration: sessionDuration,
		now:             func() time.Time { return time.Now().UTC() },
	}

	if fs != nil && strings.TrimSpace(storageDir) != "" {
		svc.path = filepath.Join(storageDir, "sessions.json")
		if err := svc.syncLocked(true); err != nil {
			return nil, err
		}
	}

	return svc, nil
}

// Create starts a new session for the given account.
func (s *Service) Create(accountID, userAgent, ipAddress string) (models.Session, error) {
	token, err := generateToken()
	if err != nil {
		return models.Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.syncLocked(true); err != nil {
		return models.Session{}, err
	}

	now := s.now()
	session := models.Session{
		Token:     token,
		AccountID: accountID,
		ExpiresAt: now.Add(s.sessionDuration),
		CreatedAt: now,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}

	s.sessions[token] = session
	if err := s.saveLocked(); err != nil {
		delete(s.sessions, token)
		return models.Session{}, err
	}
	return session, nil
}

// Validate checks if a token is valid and returns the associated session.
func (s *Service) Validate(token string) (models.Session, error) {
	if token == "" {
		return models.Session{}, ErrInvalidToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.syncLocked(false); err != nil {
		log.Printf("[sessions] reload %s failed: %v", s.path, err)
	}

	session, ok := s.sessions[token]
	if !ok {
		return models.Session{}, ErrSessionNotFound
	}

	if s.expired(session) {
		delete(s.sessions, token)
		s.gone = append(s.gone, token)
		return models.Session{}, ErrSessionExpired
	}

	return session, nil
}

// Revoke invalidates a session by its token.
func (s *Service) Revoke(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.syncLocked(true); err != nil {
		return err
	}
	if _, ok := s.sessions[token]; !ok {
		return ErrSessionNotFound
	}

	delete(s.sessions, token)
	return s.saveLocked()
}

// RevokeAllForAccount invalidates every session of an account except keep,
// which may be empty, and returns the revoked tokens.
func (s *Service) RevokeAllForAccount(accountID, keep string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.syncLocked(true); err != nil {
		return nil, err
	}

	var revoked []string
	for token, session := range s.sessions {
		if session.AccountID == accountID && token != keep {
			delete(s.sessions, token)
			revoked = append(revoked, token)
		}
	}
	if len(revoked) == 0 {
		return nil, nil
	}
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	return revoked, nil
}

// Refresh extends a session's expiration time.
func (s *Service) Refresh(token string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.syncLocked(true); err != nil {
		return models.Session{}, err
	}

	session, ok := s.sessions[token]
	if !ok {
		return models.Session{}, ErrSessionNotFound
	}

	if s.expired(session) {
		delete(s.sessions, token)
		s.gone = append(s.gone, token)
		_ = s.saveLocked()
		return models.Session{}, ErrSessionExpired
	}

	now := s.now()
	session.ExpiresAt = now.Add(s.sessionDuration)
	session.RefreshedAt = now
	s.sessions[token] = session
	_ = s.saveLocked()

	return session, nil
}

// Cleanup removes all expired sessions and returns their tokens, together
// with tokens that expired on validation or were revoked by another process
// since the last Cleanup.
func (s *Service) Cleanup() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.syncLocked(false); err != nil {
		log.Printf("[sessions] reload %s failed: %v", s.path, err)
	}

	removed := s.gone
	s.gone = nil
	for token, session := range s.sessions {
		if s.expired(session) {
			delete(s.sessions, token)
			removed = append(removed, token)
		}
	}
	if len(removed) > 0 {
		if err := s.saveLocked(); err != nil {
			log.Printf("[sessions] save after cleanup failed: %v", err)
		}
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is done. onExpired, if
// set, receives the tokens removed by each sweep.
func (s *Service) Run(ctx context.Context, interval time.Duration, onExpired func(token string)) error {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			removed := s.Cleanup()
			if len(removed) > 0 {
				log.Printf("[sessions] removed %d sessions", len(removed))
			}
			if onExpired != nil {
				for _, token := range removed {
					onExpired(token)
				}
			}
		}
	}
}

// Count returns the total number of stored sessions.
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Service) expired(session models.Session) bool {
	return session.ExpiredAt(s.now())
}

// generateToken creates a cryptographically secure random token.
func generateToken() (string, error) {
	bytes := make([]byte, TokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// syncLocked replaces the in-memory sessions with the file contents when the
// file changed since it was last read or written, or unconditionally if force.
// Tokens that disappeared from the file are queued for the next Cleanup.
func (s *Service) syncLocked(force bool) error {
	if s.path == "" {
		return nil
	}

	version, err := jsonfile.Stat(s.fs, s.path)
	if err != nil {
		return err
	}
	if !force && version.Equal(s.version) {
		return nil
	}

	var stored []models.Session
	if _, err := jsonfile.Read(s.fs, s.path, &stored); err != nil {
		return err
	}

	sessions := make(map[string]models.Session, len(stored))
	for _, session := range stored {
		if strings.TrimSpace(session.Token) == "" || s.expired(session) {
			continue
		}
		sessions[session.Token] = session
	}
	for token := range s.sessions {
		if _, ok := sessions[token]; !ok {
			s.gone = append(s.gone, token)
		}
	}

	s.sessions = sessions
	s.version = version
	return nil
}

// saveLocked writes sessions to disk. Must be called with mu held.
func (s *Service) saveLocked() error {
	if s.path == "" {
		return nil
	}

	sessions := make([]models.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	if err := jsonfile.Write(s.fs, s.path, sessions); err != nil {
		return err
	}
	version, err := jsonfile.Stat(s.fs, s.path)
	if err != nil {
		return err
	}
	s.version = version
	return nil
}
