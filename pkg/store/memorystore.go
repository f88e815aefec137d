// Package store implements a simple key-value store used to track tool
// installations within a single run.
package store

import (
	"errors"
	"sync"
)

var (
	ErrKeyExists      = errors.New("store: key already exists")
	ErrKeyDoesntExist = errors.New("store: key does not exist")
)

type Store interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

type MemStore struct {
	lock  sync.Mutex
	store map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{
		store: make(map[string]string),
	}
}

// Set is used to set a value to a key.
func (m *MemStore) Set(key, value string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.store[key]; ok {
		return ErrKeyExists
	}
	m.store[key] = value
	return nil
}

// Get is used to get a value from a key.
func (m *MemStore) Get(key string) (string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.store[key]; !ok {
		return "", ErrKeyDoesntExist
	}
	return m.store[key], nil
}

// Delete removes the specified key and value.
func (m *MemStore) Delete(key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.store[key]; !ok {
		return ErrKeyDoesntExist
	}
	delete(m.store, key)
	return nil
}
