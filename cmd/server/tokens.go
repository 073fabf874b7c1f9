package main

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTokenTTL is how long an unused request token stays valid.
	DefaultTokenTTL = 15 * time.Minute
	// DefaultMaxTokens caps outstanding tokens; issuing beyond it evicts
	// the oldest.
	DefaultMaxTokens = 10000
)

type tokenEntry struct {
	token   string
	expires time.Time
}

// tokenStore issues single-use request tokens. Entries are kept in issue
// order, which is also expiry order since the TTL is fixed.
type tokenStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	max    int
	order  *list.List // of tokenEntry, oldest first
	tokens map[string]*list.Element
	now    func() time.Time
}

func newTokenStore(ttl time.Duration, maxTokens int) *tokenStore {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &tokenStore{
		ttl:    ttl,
		max:    maxTokens,
		order:  list.New(),
		tokens: make(map[string]*list.Element),
		now:    time.Now,
	}
}

// Issue returns a fresh token. Expired tokens are dropped from the front
// of the queue, and the oldest live ones are evicted once the cap is hit.
func (s *tokenStore) Issue() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for front := s.order.Front(); front != nil; front = s.order.Front() {
		if now.Before(front.Value.(tokenEntry).expires) && s.order.Len() < s.max {
			break
		}
		s.remove(front)
	}

	tok := uuid.NewString()
	s.tokens[tok] = s.order.PushBack(tokenEntry{token: tok, expires: now.Add(s.ttl)})
	return tok
}

// Consume reports whether tok was issued and still valid, and invalidates it.
func (s *tokenStore) Consume(tok string) bool {
	if tok == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.tokens[tok]
	if !ok {
		return false
	}
	s.remove(el)
	return s.now().Before(el.Value.(tokenEntry).expires)
}

func (s *tokenStore) remove(el *list.Element) {
	delete(s.tokens, el.Value.(tokenEntry).token)
	s.order.Remove(el)
}

// Len returns the number of outstanding tokens.
func (s *tokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}
