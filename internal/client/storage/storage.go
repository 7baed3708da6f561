// Package storage keeps small string values on disk for the client, the way
// a browser keeps localStorage.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/afero"
)

// LocalStorage is a persistent string key-value store backed by a JSON file.
type LocalStorage struct {
	Items map[string]string `json:"items"`

	mu   sync.Mutex
	fs   afero.Fs
	path string
}

// NewLocalStorage returns a store persisted to path on fs. Call Load to read
// existing values.
func NewLocalStorage(fs afero.Fs, path string) *LocalStorage {
	return &LocalStorage{
		Items: make(map[string]string),
		fs:    fs,
		path:  path,
	}
}

// Load reads the storage file. A missing file leaves the store empty.
func (ls *LocalStorage) Load() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	data, err := afero.ReadFile(ls.fs, ls.path)
	if errors.Is(err, os.ErrNotExist) {
		ls.Items = make(map[string]string)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read storage: %w", err)
	}

	var decoded struct {
		Items map[string]string `json:"items"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("decode storage: %w", err)
	}
	if decoded.Items == nil {
		decoded.Items = make(map[string]string)
	}
	ls.Items = decoded.Items
	return nil
}

// Save writes every item to the storage file.
func (ls *LocalStorage) Save() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.saveLocked()
}

// GetItem returns the value stored under key.
func (ls *LocalStorage) GetItem(key string) (string, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	v, ok := ls.Items[key]
	return v, ok
}

// SetItem stores value under key and persists the store.
func (ls *LocalStorage) SetItem(key, value string) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	prev, had := ls.Items[key]
	ls.Items[key] = value
	if err := ls.saveLocked(); err != nil {
		if had {
			ls.Items[key] = prev
		} else {
			delete(ls.Items, key)
		}
		return err
	}
	return nil
}

// RemoveItem deletes key and persists the store.
func (ls *LocalStorage) RemoveItem(key string) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if _, ok := ls.Items[key]; !ok {
		return nil
	}
	delete(ls.Items, key)
	return ls.saveLocked()
}

func (ls *LocalStorage) saveLocked() error {
	data, err := json.MarshalIndent(struct {
		Items map[string]string `json:"items"`
	}{ls.Items}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storage: %w", err)
	}
	if err := afero.WriteFile(ls.fs, ls.path, data, 0o600); err != nil {
		return fmt.Errorf("write storage: %w", err)
	}
	return nil
}
