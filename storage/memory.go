package storage

import (
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// MemoryStore is a non-persistent Store for tests and throwaway sessions.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[ethcommon.Hash][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[ethcommon.Hash][]byte)}
}

func (s *MemoryStore) LoadAll() (map[ethcommon.Hash][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[ethcommon.Hash][]byte, len(s.records))
	for k, v := range s.records {
		cp := make([]byte, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out, nil
}

func (s *MemoryStore) Save(paymentHash ethcommon.Hash, record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]byte, len(record))
	copy(cp, record)
	s.records[paymentHash] = cp
	return nil
}

func (s *MemoryStore) SaveMany(records map[ethcommon.Hash][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range records {
		cp := make([]byte, len(v))
		copy(cp, v)
		s.records[k] = cp
	}
	return nil
}

func (s *MemoryStore) Remove(paymentHash ethcommon.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, paymentHash)
	return nil
}
