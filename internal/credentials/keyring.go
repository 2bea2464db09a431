package credentials

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	// keyringServicePrefix is the prefix for all taskbridge keyring entries
	keyringServicePrefix = "taskbridge"

	// keyringTokenUser is the keyring "username" slot under which the API
	// token is stored; providers authenticate with a single token.
	keyringTokenUser = "api-token"
)

func serviceName(source string) string {
	return fmt.Sprintf("%s-%s", keyringServicePrefix, source)
}

// SetToken stores an API token in the OS keyring.
func SetToken(source, token string) error {
	if source == "" {
		return fmt.Errorf("source name cannot be empty")
	}
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	if err := keyring.Set(serviceName(source), keyringTokenUser, token); err != nil {
		return fmt.Errorf("failed to store token in keyring: %w", err)
	}
	return nil
}

// TokenFromKeyring retrieves an API token from the OS keyring.
func TokenFromKeyring(source string) (string, error) {
	if source == "" {
		return "", fmt.Errorf("source name cannot be empty")
	}

	token, err := keyring.Get(serviceName(source), keyringTokenUser)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", fmt.Errorf("no token found in keyring for source %q", source)
		}
		return "", fmt.Errorf("failed to read token from keyring: %w", err)
	}
	return token, nil
}

// DeleteToken removes an API token from the OS keyring.
func DeleteToken(source string) error {
	if source == "" {
		return fmt.Errorf("source name cannot be empty")
	}

	if err := keyring.Delete(serviceName(source), keyringTokenUser); err != nil {
		if err == keyring.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete token from keyring: %w", err)
	}
	return nil
}

// KeyringAvailable reports whether the OS keyring backend is usable.
func KeyringAvailable() bool {
	probe := serviceName("availability-probe")
	if err := keyring.Set(probe, keyringTokenUser, "probe"); err != nil {
		return false
	}
	_ = keyring.Delete(probe, keyringTokenUser)
	return true
}
