package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role роль держателя сессии. Не полноценная авторизация, а явная
// серверная проверка способности вместо клиентского флага.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleGuest Role = "guest"
)

func ValidRole(r Role) bool { return r == RoleAdmin || r == RoleGuest }

// ErrTokenNotFound токен не выдан или истёк
var ErrTokenNotFound = errors.New("token not found")

// TokenStore хранилище сессионных токенов
type TokenStore interface {
	// Issue выдаёт новый токен для роли
	Issue(ctx context.Context, role Role) (string, error)
	// Resolve возвращает роль токена или ErrTokenNotFound
	Resolve(ctx context.Context, token string) (Role, error)
	Revoke(ctx context.Context, token string) error
}

// TokenTTL время жизни сессии
const TokenTTL = 24 * time.Hour

// MemoryTokens in-memory реализация для одного процесса
type MemoryTokens struct {
	mu     sync.RWMutex
	tokens map[string]memoryToken
	now    func() time.Time
}

type memoryToken struct {
	role    Role
	expires time.Time
}

func NewMemoryTokens() *MemoryTokens {
	return &MemoryTokens{tokens: make(map[string]memoryToken), now: time.Now}
}

var _ TokenStore = (*MemoryTokens)(nil)

func (m *MemoryTokens) Issue(ctx context.Context, role Role) (string, error) {
	token := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = memoryToken{role: role, expires: m.now().Add(TokenTTL)}
	return token, nil
}

func (m *MemoryTokens) Resolve(ctx context.Context, token string) (Role, error) {
	m.mu.RLock()
	t, ok := m.tokens[token]
	m.mu.RUnlock()
	if !ok {
		return "", ErrTokenNotFound
	}
	if m.now().After(t.expires) {
		m.mu.Lock()
		delete(m.tokens, token)
		m.mu.Unlock()
		return "", ErrTokenNotFound
	}
	return t.role, nil
}

func (m *MemoryTokens) Revoke(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	return nil
}
