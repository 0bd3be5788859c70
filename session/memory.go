package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]Session
}

func NewMemoryRepository(ttl time.Duration) *memoryRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &memoryRepository{
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]Session),
	}
}

func (r *memoryRepository) Create(_ context.Context, userID uuid.UUID) (*Session, error) {
	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}
	now := r.now()
	session := Session{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: now.Add(r.ttl),
		CreatedAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[token] = session
	return &session, nil
}

func (r *memoryRepository) GetByToken(_ context.Context, token string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[token]
	if !ok {
		return nil, ErrInvalidSession
	}
	if session.Expired(r.now()) {
		return nil, ErrExpiredSession
	}
	return &session, nil
}

func (r *memoryRepository) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
	return nil
}

func (r *memoryRepository) DeleteByUserID(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, session := range r.sessions {
		if session.UserID == userID {
			delete(r.sessions, token)
		}
	}
	return nil
}

func (r *memoryRepository) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var n int64
	for token, session := range r.sessions {
		if session.Expired(now) {
			delete(r.sessions, token)
			n++
		}
	}
	return n, nil
}
