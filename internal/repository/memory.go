package repository

import (
	"context"
	"sync"

	"github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/model"
)

// MemoryStore is an in-process UserStore with the same contract as the
// Postgres store. Used by tests and local development without a database.
type MemoryStore struct {
	mu      sync.Mutex
	byEmail map[string]model.User
	byID    map[string]model.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byEmail: make(map[string]model.User),
		byID:    make(map[string]model.User),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, user model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[user.Email]; exists {
		return ErrEmailTaken
	}
	s.byEmail[user.Email] = user
	s.byID[user.ID] = user
	return nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byEmail[email]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return user, nil
}

func (s *MemoryStore) GetUserByID(_ context.Context, id string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return user, nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}
