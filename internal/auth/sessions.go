// Package auth persists browser sessions in SQLite. Session tokens are
// random 256-bit values handed to the client; only their SHA-256 hash is
// stored.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

var (
	ErrSessionInvalid = errors.New("session token is invalid")
	ErrSessionExpired = errors.New("session token is expired")
)

// DefaultSessionTTL is how long a session stays valid without re-login.
const DefaultSessionTTL = 30 * 24 * time.Hour

const storeCleanupInterval = 5 * time.Minute
const privateDirPerm = 0o700

// SessionStore persists sessions in SQLite, keyed by SHA-256(rawToken) hex.
type SessionStore struct {
	db          *sql.DB
	stopCleanup chan struct{}
	mu          sync.Mutex
}

// NewSessionStore opens (or creates) the session database in dir.
func NewSessionStore(dir string) (*SessionStore, error) {
	dir = filepath.Clean(dir)
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("dir is required")
	}
	if err := os.MkdirAll(dir, privateDirPerm); err != nil {
		return nil, fmt.Errorf("create session store dir: %w", err)
	}
	if err := os.Chmod(dir, privateDirPerm); err != nil {
		return nil, fmt.Errorf("restrict session store dir: %w", err)
	}

	dbPath := filepath.Join(dir, "sessions.db")
	dsn := dbPath + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SessionStore{
		db:          db,
		stopCleanup: make(chan struct{}),
	}
	if err := s.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, errors.Join(err, fmt.Errorf("close session db after schema init failure: %w", closeErr))
		}
		return nil, err
	}

	go s.cleanupLoop()
	return s, nil
}

func (s *SessionStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		token_hash TEXT PRIMARY KEY,
		user_id    INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init session schema: %w", err)
	}
	return nil
}

func (s *SessionStore) cleanupLoop() {
	ticker := time.NewTicker(storeCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.DeleteExpired(time.Now().UTC()); err != nil {
				log.Warn().Err(err).Msg("Failed to delete expired sessions")
			}
		case <-s.stopCleanup:
			return
		}
	}
}

// Create issues a new session for the user and returns the raw token.
func (s *SessionStore) Create(userID int64, ttl time.Duration) (string, error) {
	if s == nil {
		return "", fmt.Errorf("session store not configured")
	}
	if userID <= 0 {
		return "", fmt.Errorf("user id is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	token := hex.EncodeToString(raw)
	now := time.Now().UTC()

	s.mu.Lock()
	db := s.db
	if db == nil {
		s.mu.Unlock()
		return "", fmt.Errorf("session store not configured")
	}
	defer s.mu.Unlock()
	_, err := db.Exec(
		`INSERT INTO sessions (token_hash, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		hashToken(token), userID, now.Add(ttl).Unix(), now.Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return token, nil
}

// Validate resolves a raw token to its user ID.
func (s *SessionStore) Validate(token string, now time.Time) (int64, error) {
	if s == nil || strings.TrimSpace(token) == "" {
		return 0, ErrSessionInvalid
	}

	s.mu.Lock()
	db := s.db
	if db == nil {
		s.mu.Unlock()
		return 0, ErrSessionInvalid
	}
	defer s.mu.Unlock()

	var userID, expiresAtUnix int64
	row := db.QueryRow(`SELECT user_id, expires_at FROM sessions WHERE token_hash = ?`, hashToken(token))
	if err := row.Scan(&userID, &expiresAtUnix); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrSessionInvalid
		}
		return 0, fmt.Errorf("load session: %w", err)
	}
	if now.UTC().After(time.Unix(expiresAtUnix, 0).UTC()) {
		return 0, ErrSessionExpired
	}
	return userID, nil
}

// Revoke deletes a session by its raw token.
func (s *SessionStore) Revoke(token string) error {
	if s == nil || strings.TrimSpace(token) == "" {
		return nil
	}
	s.mu.Lock()
	db := s.db
	if db == nil {
		s.mu.Unlock()
		return nil
	}
	defer s.mu.Unlock()
	if _, err := db.Exec(`DELETE FROM sessions WHERE token_hash = ?`, hashToken(token)); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions past their expiry time.
func (s *SessionStore) DeleteExpired(now time.Time) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	db := s.db
	if db == nil {
		s.mu.Unlock()
		return nil
	}
	defer s.mu.Unlock()
	if _, err := db.Exec(`DELETE FROM sessions WHERE expires_at < ?`, now.UTC().Unix()); err != nil {
		return fmt.Errorf("delete expired sessions: %w", err)
	}
	return nil
}

// Close stops the background cleanup goroutine and closes the database.
func (s *SessionStore) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.stopCleanup:
	default:
		close(s.stopCleanup)
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close session store database")
		}
		s.db = nil
	}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
