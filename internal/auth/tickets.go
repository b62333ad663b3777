package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

const ticketBytes = 32

// TicketStore hands out single-use WebSocket tickets.
type TicketStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	tickets map[string]ticket
}

type ticket struct {
	subject   string
	expiresAt time.Time
}

// NewTicketStore creates a store whose tickets live for ttl.
func NewTicketStore(ttl time.Duration) *TicketStore {
	return &TicketStore{
		ttl:     ttl,
		now:     time.Now,
		tickets: make(map[string]ticket),
	}
}

// TTL returns how long an issued ticket stays valid.
func (s *TicketStore) TTL() time.Duration {
	return s.ttl
}

// Issue creates a ticket for subject.
func (s *TicketStore) Issue(subject string) (string, error) {
	b := make([]byte, ticketBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating ticket: %w", err)
	}
	t := hex.EncodeToString(b)

	s.mu.Lock()
	s.tickets[t] = ticket{subject: subject, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return t, nil
}

// Redeem consumes t and returns its subject. A ticket works at most once.
func (s *TicketStore) Redeem(t string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tickets[t]
	if !ok {
		return "", false
	}
	delete(s.tickets, t)
	if !s.now().Before(entry.expiresAt) {
		return "", false
	}
	return entry.subject, true
}

// Sweep drops expired tickets and returns how many were removed.
func (s *TicketStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for t, entry := range s.tickets {
		if !now.Before(entry.expiresAt) {
			delete(s.tickets, t)
			removed++
		}
	}
	return removed
}

// Len returns the number of outstanding tickets.
func (s *TicketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickets)
}

// Run sweeps once per TTL until ctx is cancelled.
func (s *TicketStore) Run(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
