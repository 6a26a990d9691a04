// Package secrets encrypts provider API keys at rest. Keys are sealed with
// AES-256-GCM under a key derived from a configured passphrase; with no
// passphrase the Sealer passes values through unchanged.
package secrets

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/textlens/internal/store"
)

// sealedPrefix marks values written by Seal. Values without it are treated
// as plain text, which lets an installation turn encryption on later.
const sealedPrefix = "sealed:v1:"

var (
	// ErrWrongPassphrase is returned by Open when the passphrase does not
	// match the one the database was sealed with.
	ErrWrongPassphrase = errors.New("secrets passphrase does not match this database")

	// ErrLocked is returned when a sealed value is read without a passphrase.
	ErrLocked = errors.New("value is sealed but no secrets passphrase is configured")
)

// Compile-time interface guard.
var _ store.Sealer = (*Sealer)(nil)

// Sealer seals and opens individual secret strings.
type Sealer struct {
	key []byte // nil: passthrough
}

// Plain returns a Sealer that stores values unencrypted and refuses to open
// sealed ones.
func Plain() *Sealer {
	return &Sealer{}
}

// NewSealer derives a Sealer from passphrase and salt. An empty passphrase
// yields a passthrough Sealer.
func NewSealer(passphrase string, salt []byte) *Sealer {
	if passphrase == "" {
		return Plain()
	}
	return &Sealer{key: deriveKey(passphrase, salt)}
}

// Open loads (or on first use creates) the salt and verification record in
// s and returns a Sealer for passphrase. A passphrase that does not match
// the stored record returns ErrWrongPassphrase.
func Open(ctx context.Context, s *store.SQLiteStore, passphrase string, logger *zap.Logger) (*Sealer, error) {
	if err := s.Migrate(ctx, "secrets", migrations()); err != nil {
		return nil, fmt.Errorf("migrate secrets: %w", err)
	}
	if passphrase == "" {
		logger.Warn("no secrets passphrase configured; API keys are stored in plain text")
		return Plain(), nil
	}

	var salt, blob []byte
	err := s.DB().QueryRowContext(ctx,
		"SELECT salt, verification_blob FROM secrets_master WHERE id = 1",
	).Scan(&salt, &blob)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return initialize(ctx, s, passphrase, logger)
	case err != nil:
		return nil, fmt.Errorf("load secrets master record: %w", err)
	}

	sealer := NewSealer(passphrase, salt)
	if !verify(sealer.key, blob) {
		return nil, ErrWrongPassphrase
	}
	return sealer, nil
}

func initialize(ctx context.Context, s *store.SQLiteStore, passphrase string, logger *zap.Logger) (*Sealer, error) {
	salt, err := generateSalt()
	if err != nil {
		return nil, err
	}
	sealer := NewSealer(passphrase, salt)
	blob, err := encrypt(sealer.key, verificationMagic)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = s.DB().ExecContext(ctx, `
		INSERT INTO secrets_master (id, salt, verification_blob, created_at)
		VALUES (1, ?, ?, ?)`,
		salt, blob, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert secrets master record: %w", err)
	}
	logger.Info("initialized secrets master record")
	return sealer, nil
}

// Enabled reports whether values are encrypted.
func (s *Sealer) Enabled() bool {
	return s.key != nil
}

// Seal encrypts plain. Empty strings stay empty so "no API key" remains
// visible to validation.
func (s *Sealer) Seal(plain string) (string, error) {
	if plain == "" || s.key == nil {
		return plain, nil
	}
	ct, err := encrypt(s.key, []byte(plain))
	if err != nil {
		return "", fmt.Errorf("seal: %w", err)
	}
	return sealedPrefix + base64.StdEncoding.EncodeToString(ct), nil
}

// Open reverses Seal. Values without the sealed prefix are returned as is.
func (s *Sealer) Open(stored string) (string, error) {
	encoded, ok := strings.CutPrefix(stored, sealedPrefix)
	if !ok {
		return stored, nil
	}
	if s.key == nil {
		return "", ErrLocked
	}
	ct, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("open: decode: %w", err)
	}
	plain, err := decrypt(s.key, ct)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	return string(plain), nil
}
