package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// LinkIndex remembers which peer task mirrors which exchange task, so a link
// survives a user editing the marker out of a task's notes.
type LinkIndex struct {
	Mappings map[string]string `json:"mappings"`
	Path     string            `json:"-"`
	mu       sync.RWMutex
	dirty    bool
}

// NewLinkIndex opens the index stored at path, starting empty when the file
// does not exist yet.
func NewLinkIndex(path string) (*LinkIndex, error) {
	idx := &LinkIndex{
		Mappings: make(map[string]string),
		Path:     path,
	}

	if _, err := os.Stat(path); err == nil {
		if err := idx.Load(); err != nil {
			return nil, err
		}
	}

	return idx, nil
}

func (idx *LinkIndex) Load() error {
	f, err := os.Open(idx.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	idx.mu.Lock()
	defer idx.mu.Unlock()
	return json.NewDecoder(f).Decode(&idx.Mappings)
}

func (idx *LinkIndex) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.dirty {
		return nil
	}

	dir := filepath.Dir(idx.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	f, err := os.Create(idx.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(idx.Mappings); err != nil {
		return err
	}
	idx.dirty = false
	return nil
}

// Get returns the peer id linked to exchangeID.
func (idx *LinkIndex) Get(exchangeID string) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.Mappings[exchangeID]
}

// ExchangeIDFor is the reverse of Get.
func (idx *LinkIndex) ExchangeIDFor(peerID string) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for exchangeID, id := range idx.Mappings {
		if id == peerID {
			return exchangeID, true
		}
	}
	return "", false
}

func (idx *LinkIndex) Set(exchangeID, peerID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.Mappings[exchangeID] != peerID {
		idx.Mappings[exchangeID] = peerID
		idx.dirty = true
	}
}

func (idx *LinkIndex) Remove(exchangeID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.Mappings[exchangeID]; exists {
		delete(idx.Mappings, exchangeID)
		idx.dirty = true
	}
}
