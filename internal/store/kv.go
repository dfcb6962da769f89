package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"memorludo/internal/util"
)

// KV is the local persisted key/value store. Every player field lives under
// its own string key so entries stay independently readable and writable.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
	Keys(prefix string) []string
}

// FileKV persists the key space as one JSON document, rewritten atomically
// on every mutation. Losing the file degrades to a fresh profile, never to
// an error surfaced to gameplay.
type FileKV struct {
	mu   sync.RWMutex
	path string
	data map[string]string
}

// OpenFileKV loads the store at path, starting empty when the file is
// missing or unreadable.
func OpenFileKV(path string) *FileKV {
	kv := &FileKV{path: path, data: make(map[string]string)}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			util.LogWarn("Failed to read local store %s: %v, starting empty", path, err)
		}
		return kv
	}
	if err := json.Unmarshal(raw, &kv.data); err != nil {
		util.LogWarn("Failed to parse local store %s: %v, starting empty", path, err)
		kv.data = make(map[string]string)
	}
	util.LogInfo("Loaded %d entries from local store %s", len(kv.data), path)
	return kv
}

func (kv *FileKV) Get(key string) (string, bool) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.data[key]
	return v, ok
}

func (kv *FileKV) Set(key, value string) {
	kv.mu.Lock()
	kv.data[key] = value
	kv.persistLocked()
	kv.mu.Unlock()
}

func (kv *FileKV) Delete(key string) {
	kv.mu.Lock()
	delete(kv.data, key)
	kv.persistLocked()
	kv.mu.Unlock()
}

// Keys returns every key carrying the given prefix.
func (kv *FileKV) Keys(prefix string) []string {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	keys := make([]string, 0)
	for k := range kv.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	return keys
}

func (kv *FileKV) persistLocked() {
	if kv.path == "" {
		return
	}
	raw, err := json.MarshalIndent(kv.data, "", "  ")
	if err != nil {
		util.LogWarn("Failed to marshal local store: %v", err)
		return
	}
	tmp := kv.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(kv.path), 0o755); err != nil {
		util.LogWarn("Failed to create local store directory: %v", err)
		return
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		util.LogWarn("Failed to write local store: %v", err)
		return
	}
	if err := os.Rename(tmp, kv.path); err != nil {
		util.LogWarn("Failed to replace local store: %v", err)
	}
}

// MemKV is an ephemeral KV for tests and for running without persistence.
type MemKV struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string]string)}
}

func (kv *MemKV) Get(key string) (string, bool) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.data[key]
	return v, ok
}

func (kv *MemKV) Set(key, value string) {
	kv.mu.Lock()
	kv.data[key] = value
	kv.mu.Unlock()
}

func (kv *MemKV) Delete(key string) {
	kv.mu.Lock()
	delete(kv.data, key)
	kv.mu.Unlock()
}

func (kv *MemKV) Keys(prefix string) []string {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	keys := make([]string, 0)
	for k := range kv.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	return keys
}
