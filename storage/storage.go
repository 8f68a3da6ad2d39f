package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Subscriber identifies one delivery destination: a chat plus an optional
// forum thread. The pair is the uniqueness key.
type Subscriber struct {
	ChatID          int64 `json:"chatId"`
	MessageThreadID *int  `json:"messageThreadId"`
}

func sameThread(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s Subscriber) matches(chatID int64, threadID *int) bool {
	return s.ChatID == chatID && sameThread(s.MessageThreadID, threadID)
}

// Store owns the subscriber collection. The whole set is loaded once at
// startup and the file is rewritten in full on every mutation; no other
// component touches the underlying collection.
type Store struct {
	path string

	mu   sync.Mutex
	subs []Subscriber
}

// Open loads the subscriber file at path. A missing or corrupt file starts
// an empty set (first-run bootstrap).
func Open(path string) *Store {
	st := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("subscriber file unreadable, starting empty", "path", path, "error", err)
		}
		return st
	}

	if err := json.Unmarshal(data, &st.subs); err != nil {
		slog.Warn("subscriber file corrupt, starting empty", "path", path, "error", err)
		st.subs = nil
	}
	return st
}

// IsSubscribed reports whether the (chat, thread) key is in the set.
func (st *Store) IsSubscribed(chatID int64, threadID *int) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.index(chatID, threadID) >= 0
}

// Add subscribes a destination. It reports false without touching the file
// when the key already exists. The set is persisted before returning, and a
// persistence failure leaves the in-memory set unchanged.
func (st *Store) Add(chatID int64, threadID *int) (bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.index(chatID, threadID) >= 0 {
		return false, nil
	}

	next := append(append([]Subscriber(nil), st.subs...), Subscriber{
		ChatID:          chatID,
		MessageThreadID: threadID,
	})
	if err := st.save(next); err != nil {
		return false, err
	}
	st.subs = next
	return true, nil
}

// Remove unsubscribes a destination. It reports false without touching the
// file when the key is absent.
func (st *Store) Remove(chatID int64, threadID *int) (bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	i := st.index(chatID, threadID)
	if i < 0 {
		return false, nil
	}

	next := append(append([]Subscriber(nil), st.subs[:i]...), st.subs[i+1:]...)
	if err := st.save(next); err != nil {
		return false, err
	}
	st.subs = next
	return true, nil
}

// All returns a copy of the current subscriber set.
func (st *Store) All() []Subscriber {
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]Subscriber(nil), st.subs...)
}

func (st *Store) index(chatID int64, threadID *int) int {
	for i, s := range st.subs {
		if s.matches(chatID, threadID) {
			return i
		}
	}
	return -1
}

// save rewrites the whole file; there is no incremental diffing.
func (st *Store) save(subs []Subscriber) error {
	if subs == nil {
		subs = []Subscriber{}
	}
	data, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal subscribers: %w", err)
	}
	if err := os.WriteFile(st.path, data, 0o644); err != nil {
		return fmt.Errorf("write subscriber file: %w", err)
	}
	return nil
}
