package repository

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// MemoryUsers is an in-process UserRepository.
type MemoryUsers struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

// NewMemoryUsers seeds a directory with the given users.
func NewMemoryUsers(users ...domain.User) *MemoryUsers {
	m := &MemoryUsers{users: make(map[string]domain.User, len(users))}
	for i := range users {
		_ = m.Upsert(context.Background(), &users[i])
	}
	return m
}

func (m *MemoryUsers) Upsert(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := m.users[user.UserName]; ok {
		user.CreatedAt = existing.CreatedAt
	} else {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	stored := *user
	stored.Roles = append([]domain.UserRole(nil), user.Roles...)
	m.users[user.UserName] = stored
	return nil
}

func (m *MemoryUsers) GetByUserName(ctx context.Context, userName string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[userName]
	if !ok {
		return nil, ErrNotFound
	}
	user.Roles = append([]domain.UserRole(nil), user.Roles...)
	return &user, nil
}
