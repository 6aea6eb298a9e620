package remote

import (
	"context"
	"errors"
	"sync"
)

// ErrNoCredentials возвращается, когда сессия пуста или была сброшена
var ErrNoCredentials = errors.New("no credentials: authentication required")

// CredentialProvider источник bearer-токена для запросов
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
	// Invalidate вызывается при ответе unauthorized
	Invalidate(ctx context.Context)
}

// Session хранит токен в памяти; после Invalidate требует повторной аутентификации
type Session struct {
	mu    sync.RWMutex
	token string
}

// NewSession создаёт сессию с токеном
func NewSession(token string) *Session {
	return &Session{token: token}
}

// Token возвращает текущий токен
func (s *Session) Token(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNoCredentials
	}
	return s.token, nil
}

// Invalidate сбрасывает токен
func (s *Session) Invalidate(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

