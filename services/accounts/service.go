package accounts

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/crypto/bcrypt"

	"reeltrack/internal/jsonfile"
	"reeltrack/models"
)

var (
	ErrStorageDirRequired = errors.New("storage directory not provided")
	ErrUsernameRequired   = errors.New("username is required")
	ErrPasswordRequired   = errors.New("password is required")
	ErrAccountNotFound    = errors.New("account not found")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// dummyHash is compared against when the username is unknown so both paths cost a bcrypt round.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z2XfC0xK8sQzjRBrJX8eSK5e"

// Service manages local accounts. The account id doubles as the watchlist owner id.
//
// accounts.json is shared with other processes (the CLI edits it while the
// server runs), so the in-memory copy is re-read whenever the file changes and
// always before a write.
type Service struct {
	mu       sync.Mutex
	fs       afero.Fs
	path     string
	accounts map[string]models.Account
	version  jsonfile.Version
}

// NewService creates an accounts service storing accounts.json inside storageDir.
func NewService(fs afero.Fs, storageDir string) (*Service, error) {
	if strings.TrimSpace(storageDir) == "" {
		return nil, ErrStorageDirRequired
	}

	svc := &Service{
		fs:       fs,
		path:     filepath.Join(storageDir, "accounts.json"),
		accounts: make(map[string]models.Account),
	}

	if err := svc.syncLocked(true); err != nil {
		return nil, err
	}
	return svc, nil
}

// List returns all accounts sorted by creation time.
func (s *Service) List() []models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()

	accounts := make([]models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts
}

// Get returns the account with the given ID if present.
func (s *Service) Get(id string) (models.Account, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Account{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()

	account, ok := s.accounts[id]
	if !ok && s.reloadLocked() {
		account, ok = s.accounts[id]
	}
	return account, ok
}

// GetByUsername looks an account up case-insensitively.
func (s *Service) GetByUsername(username string) (models.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()

	account, ok := s.findByUsernameLocked(username)
	if !ok && s.reloadLocked() {
		account, ok = s.findByUsernameLocked(username)
	}
	return account, ok
}

// Create registers a new account with the provided username and password.
func (s *Service) Create(username, password string) (models.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.Account{}, ErrUsernameRequired
	}
	password = strings.TrimSpace(password)
	if password == "" {
		return models.Account{}, ErrPasswordRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.syncLocked(true); err != nil {
		return models.Account{}, err
	}
	if _, exists := s.findByUsernameLocked(username); exists {
		return models.Account{}, ErrUsernameExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.Account{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	account := models.Account{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.accounts[account.ID] = account
	if err := s.saveLocked(); err != nil {
		delete(s.accounts, account.ID)
		return models.Account{}, err
	}
	return account, nil
}

// Authenticate verifies the username and password, returning the account if valid.
func (s *Service) Authenticate(username, password string) (models.Account, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return models.Account{}, ErrInvalidCredentials
	}

	account, found := s.GetByUsername(username)
	if !found {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return models.Account{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return models.Account{}, ErrInvalidCredentials
	}
	return account, nil
}

// UpdatePassword changes the password for an account.
func (s *Service) UpdatePassword(id, newPassword string) error {
	newPassword = strings.TrimSpace(newPassword)
	if newPassword == "" {
		return ErrPasswordRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.syncLocked(true); err != nil {
		return err
	}
	account, ok := s.accounts[strings.TrimSpace(id)]
	if !ok {
		return ErrAccountNotFound
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	previous := account
	account.PasswordHash = string(hash)
	account.UpdatedAt = time.Now().UTC()
	s.accounts[account.ID] = account

	if err := s.saveLocked(); err != nil {
		s.accounts[account.ID] = previous
		return err
	}
	return nil
}

// Delete removes an account by ID. Its watchlist rows are left in place.
func (s *Service) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.syncLocked(true); err != nil {
		return err
	}
	account, ok := s.accounts[strings.TrimSpace(id)]
	if !ok {
		return ErrAccountNotFound
	}

	delete(s.accounts, account.ID)
	if err := s.saveLocked(); err != nil {
		s.accounts[account.ID] = account
		return err
	}
	return nil
}

func (s *Service) findByUsernameLocked(username string) (models.Account, bool) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return models.Account{}, false
	}
	for _, a := range s.accounts {
		if strings.ToLower(a.Username) == username {
			return a, true
		}
	}
	return models.Account{}, false
}

// syncLocked replaces the in-memory accounts with the file contents when the
// file changed since it was last read or written, or unconditionally if force.
func (s *Service) syncLocked(force bool) error {
	version, err := jsonfile.Stat(s.fs, s.path)
	if err != nil {
		return err
	}
	if !force && version.Equal(s.version) {
		return nil
	}

	var stored []models.AccountStorage
	if _, err := jsonfile.Read(s.fs, s.path, &stored); err != nil {
		return err
	}

	accounts := make(map[string]models.Account, len(stored))
	for _, entry := range stored {
		if strings.TrimSpace(entry.ID) == "" {
			continue
		}
		account := entry.ToAccount()
		if account.CreatedAt.IsZero() {
			account.CreatedAt = time.Now().UTC()
		}
		if account.UpdatedAt.IsZero() {
			account.UpdatedAt = account.CreatedAt
		}
		accounts[account.ID] = account
	}
	s.accounts = accounts
	s.version = version
	return nil
}

// refreshLocked picks up changes made by other processes. A failed read keeps
// serving the last good copy.
func (s *Service) refreshLocked() {
	if err := s.syncLocked(false); err != nil {
		log.Printf("[accounts] reload %s failed: %v", s.path, err)
	}
}

// reloadLocked forces a re-read after a lookup miss and reports whether it succeeded.
func (s *Service) reloadLocked() bool {
	if err := s.syncLocked(true); err != nil {
		log.Printf("[accounts] reload %s failed: %v", s.path, err)
		return false
	}
	return true
}

func (s *Service) saveLocked() error {
	storage := make([]models.AccountStorage, 0, len(s.accounts))
	for _, account := range s.accounts {
		storage = append(storage, account.ToStorage())
	}
	sort.Slice(storage, func(i, j int) bool {
		return storage[i].CreatedAt.Before(storage[j].CreatedAt)
	})
	if err := jsonfile.Write(s.fs, s.path, storage); err != nil {
		return err
	}
	version, err := jsonfile.Stat(s.fs, s.path)
	if err != nil {
		return err
	}
	s.version = version
	return nil
}
