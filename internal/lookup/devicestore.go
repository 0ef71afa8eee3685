package lookup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store keeps the last successfully searched RUT per kiosk device.
type Store interface {
	Get(deviceID string) (string, bool)
	Set(deviceID, rut string) error
	Delete(deviceID string) error
}

// FileStore is the durable implementation: one JSON file under the data
// dir, surviving restarts. Writes go through a temp file and rename.
type FileStore struct {
	path string
	mu   sync.Mutex
	data map[string]string
}

// NewFileStore loads (or initializes) the device-state file.
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	fs := &FileStore{
		path: filepath.Join(dataDir, "last_rut.json"),
		data: make(map[string]string),
	}

	raw, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read device state: %w", err)
	}
	if err := json.Unmarshal(raw, &fs.data); err != nil {
		return nil, fmt.Errorf("parse device state: %w", err)
	}
	return fs, nil
}

func (fs *FileStore) Get(deviceID string) (string, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	v, ok := fs.data[deviceID]
	return v, ok
}

func (fs *FileStore) Set(deviceID, rut string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.data[deviceID] = rut
	return fs.flushLocked()
}

func (fs *FileStore) Delete(deviceID string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.data[deviceID]; !ok {
		return nil
	}
	delete(fs.data, deviceID)
	return fs.flushLocked()
}

func (fs *FileStore) flushLocked() error {
	raw, err := json.Marshal(fs.data)
	if err != nil {
		return err
	}
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, fs.path)
}

// MemoryStore is the session-scoped implementation: state lives only as
// long as the process.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (ms *MemoryStore) Get(deviceID string) (string, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	v, ok := ms.data[deviceID]
	return v, ok
}

func (ms *MemoryStore) Set(deviceID, rut string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.data[deviceID] = rut
	return nil
}

func (ms *MemoryStore) Delete(deviceID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.data, deviceID)
	return nil
}
