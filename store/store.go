// Package store persists session credentials as plain key/value pairs.
//
// A Store performs no validation of the values it holds; the typed view of
// the five session fields lives in credentials.go.
package store

import (
	"maps"
	"sync"
)

// Key names one persisted field.
type Key string

const (
	KeyAccessToken  Key = "accessToken"
	KeyRefreshToken Key = "refreshToken"
	KeyUser         Key = "user"
	KeyExpiresIn    Key = "expiresIn"
	KeyTokenType    Key = "tokenType"
)

// CredentialKeys are the fields removed together by ClearAll.
var CredentialKeys = []Key{
	KeyAccessToken,
	KeyRefreshToken,
	KeyUser,
	KeyExpiresIn,
	KeyTokenType,
}

// Store is the key/value surface shared by the request client and the auth
// service. ClearAll and SetAll must not expose partially applied state, and
// GetAll must read every key from the same state.
type Store interface {
	Get(key Key) (string, bool)
	GetAll(keys ...Key) map[Key]string
	Set(key Key, value string) error
	SetAll(values map[Key]string) error
	Remove(key Key) error
	ClearAll() error
}

// MemoryStore keeps values in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[Key]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[Key]string)}
}

func (m *MemoryStore) Get(key Key) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// GetAll returns the present keys among keys.
func (m *MemoryStore) GetAll(keys ...Key) map[Key]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return pick(m.values, keys)
}

func (m *MemoryStore) Set(key Key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) SetAll(values map[Key]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	maps.Copy(m.values, values)
	return nil
}

func (m *MemoryStore) Remove(key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryStore) ClearAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range CredentialKeys {
		delete(m.values, k)
	}
	return nil
}

func pick(values map[Key]string, keys []Key) map[Key]string {
	out := make(map[Key]string, len(keys))
	for _, k := range keys {
		if v, ok := values[k]; ok {
			out[k] = v
		}
	}
	return out
}
