package docs

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"chefmate/pkg/platform/sentinel"
)

type docKey struct {
	userID  string
	docType DocType
}

// InMemoryStore implements Store for tests and local development.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[docKey]Document
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[docKey]Document)}
}

func (s *InMemoryStore) Get(_ context.Context, userID string, docType DocType) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[docKey{userID: userID, docType: docType}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &doc, nil
}

func (s *InMemoryStore) Put(_ context.Context, userID string, docType DocType, body json.RawMessage, now time.Time) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := Document{
		UserID:    userID,
		Type:      docType,
		Body:      append(json.RawMessage(nil), body...),
		UpdatedAt: now,
	}
	s.docs[docKey{userID: userID, docType: docType}] = doc
	return &doc, nil
}

func (s *InMemoryStore) Delete(_ context.Context, userID string, docType DocType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := docKey{userID: userID, docType: docType}
	if _, ok := s.docs[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.docs, key)
	return nil
}
