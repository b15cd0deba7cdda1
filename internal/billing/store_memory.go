package billing

import (
	"context"
	"sync"
	"time"

	"chefmate/pkg/platform/sentinel"
)

// InMemoryEntitlementStore implements EntitlementStore for tests and local
// development. The mutex gives the same per-record atomicity the Postgres
// store gets from its transaction.
type InMemoryEntitlementStore struct {
	mu      sync.RWMutex
	records map[string]Entitlement
}

func NewInMemoryEntitlementStore() *InMemoryEntitlementStore {
	return &InMemoryEntitlementStore{records: make(map[string]Entitlement)}
}

func (s *InMemoryEntitlementStore) Get(_ context.Context, userID string) (*Entitlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &rec, nil
}

func (s *InMemoryEntitlementStore) ApplyPatch(_ context.Context, userID string, patch Patch, now time.Time) (*Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		rec = Entitlement{UserID: userID}
	}
	rec = Apply(rec, patch, now)
	s.records[userID] = rec
	return &rec, nil
}

func (s *InMemoryEntitlementStore) FindByCustomerID(_ context.Context, customerID string) (*Entitlement, error) {
	if customerID == "" {
		return nil, sentinel.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *Entitlement
	for _, rec := range s.records {
		if rec.StripeCustomerID != customerID {
			continue
		}
		if found != nil {
			return nil, sentinel.ErrAmbiguous
		}
		rec := rec
		found = &rec
	}
	if found == nil {
		return nil, sentinel.ErrNotFound
	}
	return found, nil
}

// InMemoryLedgerStore implements LedgerStore with a mutex-guarded map. The
// lock is held across the whole check-and-claim, so the gate stays atomic
// under concurrent duplicate delivery.
type InMemoryLedgerStore struct {
	mu      sync.Mutex
	records map[string]LedgerRecord
}

func NewInMemoryLedgerStore() *InMemoryLedgerStore {
	return &InMemoryLedgerStore{records: make(map[string]LedgerRecord)}
}

func (s *InMemoryLedgerStore) Acquire(_ context.Context, eventID, eventType string, now time.Time, lockTTL time.Duration) (AcquireResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[eventID]
	if !ok {
		s.records[eventID] = LedgerRecord{EventID: eventID, EventType: eventType, LockedAt: now}
		return FreshLock, nil
	}
	if rec.ProcessedAt != nil {
		return AlreadyProcessed, nil
	}
	if now.Sub(rec.LockedAt) > lockTTL {
		rec.LockedAt = now
		s.records[eventID] = rec
		return FreshLock, nil
	}
	return AlreadyLocked, nil
}

func (s *InMemoryLedgerStore) MarkProcessed(_ context.Context, eventID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[eventID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if rec.ProcessedAt == nil {
		t := now
		rec.ProcessedAt = &t
		s.records[eventID] = rec
	}
	return nil
}

// Record returns the ledger entry for an event id. Test helper.
func (s *InMemoryLedgerStore) Record(eventID string) (LedgerRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[eventID]
	return rec, ok
}
