package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "sidenote"

	// KeyringDSNItem holds the PostgreSQL DSN including its password
	KeyringDSNItem = "postgres-dsn"
)

// Where the PostgreSQL DSN came from, in order of precedence.
const (
	DSNSourceEnv      = "env"
	DSNSourceKeychain = "keychain"
	DSNSourceConfig   = "config"
	DSNSourceNone     = "none"
)

// KeyringManager keeps the PostgreSQL DSN in the OS keychain so config files
// never carry the database password.
//   - macOS: Keychain Access.app → "sidenote" → "postgres-dsn"
//   - Windows: Credential Manager → "sidenote"
//   - Linux: Secret Service (requires libsecret)
type KeyringManager struct {
	logger logrus.FieldLogger
}

// NewKeyringManager creates a keyring manager. A nil logger uses logrus'
// standard logger.
func NewKeyringManager(logger logrus.FieldLogger) *KeyringManager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &KeyringManager{logger: logger.WithField("component", "keyring")}
}

// SavePostgresDSN stores dsn in the OS keychain.
func (km *KeyringManager) SavePostgresDSN(dsn string) error {
	if dsn == "" {
		return fmt.Errorf("postgres DSN cannot be empty")
	}
	if err := keyring.Set(KeyringService, KeyringDSNItem, dsn); err != nil {
		km.logger.WithError(err).Error("Failed to save DSN to keychain")
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}
	km.logger.WithField("service", KeyringService).Info("PostgreSQL DSN saved to keychain")
	return nil
}

// GetPostgresDSN returns the stored DSN, or "" when none is stored.
func (km *KeyringManager) GetPostgresDSN() (string, error) {
	dsn, err := keyring.Get(KeyringService, KeyringDSNItem)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}
	km.logger.Debug("PostgreSQL DSN retrieved from keychain")
	return dsn, nil
}

// DeletePostgresDSN removes the stored DSN. Deleting a missing entry is not
// an error.
func (km *KeyringManager) DeletePostgresDSN() error {
	err := keyring.Delete(KeyringService, KeyringDSNItem)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		km.logger.WithError(err).Error("Failed to delete DSN from keychain")
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}
	return nil
}

// IsAvailable checks if the OS keychain can be used.
// Returns false on headless systems (CI/CD) without a secret service.
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(KeyringService, "test-availability")
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return true
	}
	km.logger.WithError(err).Debug("Keychain not available")
	return false
}

// StripPassword removes the password from a postgres:// DSN and reports
// whether there was one. DSNs that do not parse are returned unchanged.
func StripPassword(dsn string) (string, bool) {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn, false
	}
	if _, ok := u.User.Password(); !ok {
		return dsn, false
	}
	u.User = url.User(u.User.Username())
	return u.String(), true
}
