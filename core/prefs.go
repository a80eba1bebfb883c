package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// PreferenceEdit is one atomic batch against a single namespace. Removals are
// applied after sets, so a key present in both ends up removed.
type PreferenceEdit struct {
	Namespace string
	Set       map[string]string
	Remove    []string
}

func (e PreferenceEdit) Validate() error {
	if strings.TrimSpace(e.Namespace) == "" {
		return fmt.Errorf("core: preference namespace is required")
	}
	for key := range e.Set {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("core: preference key is required")
		}
	}
	return nil
}

func (e PreferenceEdit) Empty() bool {
	return len(e.Set) == 0 && len(e.Remove) == 0
}

// SortedSetKeys returns the keys being set in a stable order.
func (e PreferenceEdit) SortedSetKeys() []string {
	keys := make([]string, 0, len(e.Set))
	for key := range e.Set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MemoryPreferenceStore keeps namespaces in process memory.
type MemoryPreferenceStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]string
}

func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{namespaces: map[string]map[string]string{}}
}

func (s *MemoryPreferenceStore) Get(_ context.Context, namespace string, key string) (string, bool, error) {
	if s == nil {
		return "", false, fmt.Errorf("core: preference store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	values, ok := s.namespaces[namespace]
	if !ok {
		return "", false, nil
	}
	value, ok := values[key]
	return value, ok, nil
}

func (s *MemoryPreferenceStore) GetAll(_ context.Context, namespace string) (map[string]string, error) {
	if s == nil {
		return nil, fmt.Errorf("core: preference store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.namespaces[namespace]))
	for key, value := range s.namespaces[namespace] {
		out[key] = value
	}
	return out, nil
}

func (s *MemoryPreferenceStore) Apply(_ context.Context, edit PreferenceEdit) error {
	if s == nil {
		return fmt.Errorf("core: preference store is nil")
	}
	if err := edit.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	values, ok := s.namespaces[edit.Namespace]
	if !ok {
		values = map[string]string{}
		s.namespaces[edit.Namespace] = values
	}
	for key, value := range edit.Set {
		values[key] = value
	}
	for _, key := range edit.Remove {
		delete(values, key)
	}
	return nil
}
