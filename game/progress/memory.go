package progress

import "sync"

// MemoryStore keeps progress for the life of the process
type MemoryStore struct {
	mu    sync.Mutex
	level int
}

// NewMemoryStore creates a store with only the first level unlocked
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{level: DefaultLevel}
}

func (s *MemoryStore) LoadProgress() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level, nil
}

func (s *MemoryStore) SaveProgress(level int) error {
	if err := checkLevel(level); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = level
	return nil
}

func (s *MemoryStore) ResetProgress() error {
	return s.SaveProgress(DefaultLevel)
}

func (s *MemoryStore) Close() error {
	return nil
}
