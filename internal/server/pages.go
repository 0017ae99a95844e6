package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/giancarlothiella/gtsw-engine/internal/metadata"
)

// PageStore serves raw page documents from a directory of JSON files named
// "<prjId>_<formId>.json". Documents are validated once on load.
type PageStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewPageStore creates an empty store.
func NewPageStore() *PageStore {
	return &PageStore{docs: make(map[string][]byte)}
}

// LoadDir reads and validates every *.json document under dir.
func (s *PageStore) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading pages dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return err
		}
		if err := metadata.Validate(raw); err != nil {
			return fmt.Errorf("page %s: %w", e.Name(), err)
		}
		key := strings.TrimSuffix(e.Name(), ".json")
		s.mu.Lock()
		s.docs[key] = raw
		s.mu.Unlock()
	}
	return nil
}

// Put registers a document under (prjID, formID). Validates first.
func (s *PageStore) Put(prjID, formID string, raw []byte) error {
	if err := metadata.Validate(raw); err != nil {
		return err
	}
	s.mu.Lock()
	s.docs[prjID+"_"+formID] = raw
	s.mu.Unlock()
	return nil
}

// Raw returns the stored document for (prjID, formID).
func (s *PageStore) Raw(prjID, formID string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.docs[prjID+"_"+formID]
	return raw, ok
}
