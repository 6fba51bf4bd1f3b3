package storage

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	cashsessionapp "github.com/tuitionhub/backend/internal/application/cashsession"
)

var (
	_ cashsessionapp.ObjectStore   = (*MemoryReportStore)(nil)
	_ cashsessionapp.ArchiveLinker = (*MemoryReportStore)(nil)
)

// StoredObject is an object held by MemoryReportStore
type StoredObject struct {
	Body        []byte
	ContentType string
}

// MemoryReportStore keeps archives in memory. It backs development setups
// with storage disabled and tests.
type MemoryReportStore struct {
	// BaseURL prefixes generated links
	BaseURL string

	mu      sync.RWMutex
	objects map[string]StoredObject
}

// NewMemoryReportStore creates an empty store
func NewMemoryReportStore() *MemoryReportStore {
	return &MemoryReportStore{
		BaseURL: "http://localhost:9000/reports",
		objects: make(map[string]StoredObject),
	}
}

// PutObject stores a copy of body under key
func (s *MemoryReportStore) PutObject(_ context.Context, key string, body []byte, contentType string) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = StoredObject{Body: append([]byte(nil), body...), ContentType: contentType}
	return nil
}

// ObjectExists reports whether key was stored
func (s *MemoryReportStore) ObjectExists(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

// PresignGet returns an unsigned link that carries the expiry as a query parameter
func (s *MemoryReportStore) PresignGet(_ context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	if key == "" {
		return "", time.Time{}, ErrEmptyKey
	}
	if ttl <= 0 {
		ttl = defaultPresignExpiration
	}
	expiresAt := time.Now().Add(ttl)
	link := fmt.Sprintf("%s/%s?expires=%s", s.BaseURL, key, url.QueryEscape(expiresAt.UTC().Format(time.RFC3339)))
	return link, expiresAt, nil
}

// Get returns a stored object
func (s *MemoryReportStore) Get(key string) (StoredObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// Len returns the number of stored objects
func (s *MemoryReportStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
