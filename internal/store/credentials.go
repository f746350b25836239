package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/matchchat/internal/config"
	"github.com/soyeahso/matchchat/internal/logging"
)

// ErrNoCredentials is returned when a profile has never logged in.
var ErrNoCredentials = errors.New("store: not logged in")

// Credentials is what `matchchat login` saves for a profile.
type Credentials struct {
	Profile string
	UserID  string
	Token   string
	BaseURL string
	SavedAt time.Time
}

// CredentialStore saves one set of credentials per profile.
type CredentialStore interface {
	Save(c Credentials) error
	Load(profile string) (Credentials, error)
	Delete(profile string) error
	Close() error
}

// OpenCredentials opens the backend selected by session.store.
func OpenCredentials(cfg config.Config, path string, log *logging.Logger) (CredentialStore, error) {
	switch cfg.Session.Store {
	case "memory":
		return NewMemoryCredentials(), nil
	case "", "sqlite":
		db, err := Open(path, log)
		if err != nil {
			return nil, err
		}
		return NewSQLiteCredentials(db), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
}

// SQLiteCredentials implements CredentialStore on the credentials table.
type SQLiteCredentials struct {
	db *DB
}

func NewSQLiteCredentials(db *DB) *SQLiteCredentials {
	return &SQLiteCredentials{db: db}
}

// Save inserts or replaces the profile's credentials.
func (s *SQLiteCredentials) Save(c Credentials) error {
	if c.SavedAt.IsZero() {
		c.SavedAt = time.Now()
	}
	_, err := s.db.sql.Exec(
		`INSERT INTO credentials (profile, user_id, token, base_url, saved_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(profile) DO UPDATE SET
		   user_id = excluded.user_id,
		   token = excluded.token,
		   base_url = excluded.base_url,
		   saved_at = excluded.saved_at`,
		c.Profile, c.UserID, c.Token, c.BaseURL, c.SavedAt.UTC().Format(time.DateTime),
	)
	if err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	s.db.log.Debug().Str("profile", c.Profile).Str("userId", c.UserID).Msg("credentials saved")
	return nil
}

// Load returns the profile's credentials or ErrNoCredentials.
func (s *SQLiteCredentials) Load(profile string) (Credentials, error) {
	c := Credentials{Profile: profile}
	var savedAt string
	err := s.db.sql.QueryRow(
		`SELECT user_id, token, base_url, saved_at FROM credentials WHERE profile = ?`, profile,
	).Scan(&c.UserID, &c.Token, &c.BaseURL, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Credentials{}, ErrNoCredentials
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("loading credentials: %w", err)
	}
	c.SavedAt, _ = time.Parse(time.DateTime, savedAt)
	return c, nil
}

// Delete forgets the profile. Deleting an unknown profile is not an error.
func (s *SQLiteCredentials) Delete(profile string) error {
	if _, err := s.db.sql.Exec(`DELETE FROM credentials WHERE profile = ?`, profile); err != nil {
		return fmt.Errorf("deleting credentials: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteCredentials) Close() error {
	return s.db.Close()
}
