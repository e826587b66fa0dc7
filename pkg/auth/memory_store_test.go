package auth

import (
	"sort"
	"sync"
)

// memoryStore is a CredentialStore kept in a map. An error placed in
// failOn under "store", "retrieve", "list" or "delete" is returned by that
// operation.
type memoryStore struct {
	mu       sync.Mutex
	accounts map[string]Account
	failOn   map[string]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: map[string]Account{}, failOn: map[string]error{}}
}

func newMemoryManager() (*Manager, *memoryStore) {
	store := newMemoryStore()
	return NewManagerWithStores(store), store
}

func (m *memoryStore) Store(account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn["store"]; err != nil {
		return err
	}
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}
	m.accounts[account.Username] = *account
	return nil
}

func (m *memoryStore) Retrieve(username string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn["retrieve"]; err != nil {
		return nil, err
	}
	account, ok := m.accounts[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

func (m *memoryStore) List() ([]*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn["list"]; err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m.accounts))
	for name := range m.accounts {
		names = append(names, name)
	}
	sort.Strings(names)

	accounts := make([]*Account, len(names))
	for i, name := range names {
		account := m.accounts[name]
		accounts[i] = &account
	}
	return accounts, nil
}

func (m *memoryStore) Delete(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn["delete"]; err != nil {
		return err
	}
	if _, ok := m.accounts[username]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, username)
	return nil
}

func (m *memoryStore) Exists(username string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.accounts[username]
	return ok
}

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}
