package blindstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memorySecret struct {
	owner     string
	name      string
	value     string
	readers   map[string]bool
	expiresAt time.Time
}

// Memory is an in-process Store used by tests and local development runs.
// It enforces the same access rules as the real gateway: reads restricted
// to the owner plus allowed readers, deletes owner-only, TTL expiry.
type Memory struct {
	mu      sync.Mutex
	user    string
	secrets map[string]*memorySecret
}

func NewMemory() *Memory {
	return &Memory{secrets: make(map[string]*memorySecret)}
}

func (m *Memory) Initialise(_ context.Context, wallet string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = wallet
	return nil
}

func (m *Memory) StoreSecret(_ context.Context, name, value string, allowedReaders []string, ttlDays int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == "" {
		return "", ErrNotInitialised
	}

	readers := make(map[string]bool, len(allowedReaders))
	for _, r := range allowedReaders {
		readers[r] = true
	}

	reference := "mem_" + uuid.New().String()
	m.secrets[reference] = &memorySecret{
		owner:     m.user,
		name:      name,
		value:     value,
		readers:   readers,
		expiresAt: time.Now().Add(time.Duration(ttlDays) * 24 * time.Hour),
	}
	return reference, nil
}

func (m *Memory) RetrieveSecret(_ context.Context, reference, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == "" {
		return "", ErrNotInitialised
	}

	secret, ok := m.secrets[reference]
	if !ok || secret.name != name || time.Now().After(secret.expiresAt) {
		return "", fmt.Errorf("%w: %s", ErrPermissionDenied, truncate(reference))
	}
	if secret.owner != m.user && !secret.readers[m.user] {
		return "", fmt.Errorf("%w: %s", ErrPermissionDenied, truncate(reference))
	}
	return secret.value, nil
}

func (m *Memory) DeleteSecret(_ context.Context, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == "" {
		return ErrNotInitialised
	}

	secret, ok := m.secrets[reference]
	if !ok || secret.owner != m.user {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, truncate(reference))
	}
	delete(m.secrets, reference)
	return nil
}
