package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"polling-chat/internal/storage"
)

// memStore is an in-memory Store used by handler tests
type memStore struct {
	mu        sync.Mutex
	initCalls int
	users     map[string]string
	messages  []storage.Message
	now       func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[string]string),
		now:   func() time.Time { return time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC) },
	}
}

func (m *memStore) Initialize(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initCalls++
	return nil
}

func (m *memStore) CreateUser(_ context.Context, username, password string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; ok {
		return false, nil
	}
	m.users[username] = password
	return true, nil
}

func (m *memStore) VerifyUser(_ context.Context, username, password string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.users[username]
	return ok && stored == password, nil
}

func (m *memStore) AddMessage(_ context.Context, sender, content string) (storage.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := storage.Message{
		ID:        int64(len(m.messages) + 1),
		Sender:    sender,
		Content:   content,
		CreatedAt: m.now(),
	}
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *memStore) MessagesAfter(_ context.Context, cursor int64) ([]storage.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]storage.Message, 0)
	for _, msg := range m.messages {
		if msg.ID > cursor {
			out = append(out, msg)
		}
	}
	return out, nil
}

var errStoreDown = errors.New("connection refused")

// brokenStore fails every operation except Initialize
type brokenStore struct {
	memStore
	panics bool
}

func (b *brokenStore) fail() error {
	if b.panics {
		panic("store exploded")
	}
	return errStoreDown
}

func (b *brokenStore) CreateUser(context.Context, string, string) (bool, error) {
	return false, b.fail()
}

func (b *brokenStore) VerifyUser(context.Context, string, string) (bool, error) {
	return false, b.fail()
}

func (b *brokenStore) AddMessage(context.Context, string, string) (storage.Message, error) {
	return storage.Message{}, b.fail()
}

func (b *brokenStore) MessagesAfter(context.Context, int64) ([]storage.Message, error) {
	return nil, b.fail()
}
