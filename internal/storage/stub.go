package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// StubObjectStorage keeps uploads in memory. Use it for development and tests.
type StubObjectStorage struct {
	// BaseURL prefixes the returned public URLs
	BaseURL string
	// FailKeys makes uploads of keys containing any of these substrings fail
	FailKeys []string

	mu      sync.Mutex
	objects map[string][]byte
}

// NewStubObjectStorage creates a new StubObjectStorage
func NewStubObjectStorage() *StubObjectStorage {
	return &StubObjectStorage{
		BaseURL: "https://storage.example.com",
		objects: make(map[string][]byte),
	}
}

// Upload stores the object in memory
func (s *StubObjectStorage) Upload(ctx context.Context, credential, bucket, key string, data []byte, contentType string) (string, error) {
	if bucket == "" || key == "" {
		return "", errors.New("bucket and key are required")
	}
	for _, fail := range s.FailKeys {
		if fail != "" && strings.Contains(key, fail) {
			return "", errors.New("stub storage: upload rejected")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+key] = append([]byte(nil), data...)
	return PublicURL(s.BaseURL, bucket, key), nil
}

// Delete removes the object from memory
func (s *StubObjectStorage) Delete(ctx context.Context, credential, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, bucket+"/"+key)
	return nil
}

// Len returns the number of stored objects
func (s *StubObjectStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
