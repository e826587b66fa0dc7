package auth

import (
	"os"
	"time"
)

const (
	envUsername = "E6DL_USERNAME"
	envAPIKey   = "E6DL_API_KEY"
)

// EnvironmentStore reads credentials from E6DL_USERNAME and E6DL_API_KEY.
// It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment credentials. An empty username matches
// whatever account the environment names.
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	envUser := os.Getenv(envUsername)
	apiKey := os.Getenv(envAPIKey)

	if envUser == "" || apiKey == "" {
		return nil, ErrCredentialsNotFound
	}
	if username != "" && username != envUser {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Username:     envUser,
		APIKey:       apiKey,
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if environment variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist for username
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
