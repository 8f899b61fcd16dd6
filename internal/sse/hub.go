// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sse

import (
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// bufferSize is the number of undelivered events a subscriber may queue.
const bufferSize = 10

// Subscription is one open event stream of an account.
type Subscription struct {
	ch chan string
	ID string
}

// C returns the channel events are delivered on. It is closed on Unsubscribe.
func (s *Subscription) C() <-chan string {
	return s.ch
}

// Hub fans events out to the open streams of each account.
// One account usually has several devices subscribed at once.
type Hub struct {
	subscribers map[string][]*Subscription
	mu          sync.RWMutex
}

// NewHub creates a new SSE hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string][]*Subscription),
	}
}

// Subscribe adds a stream for the given account.
func (h *Hub) Subscribe(email string) *Subscription {
	sub := &Subscription{
		ID: uuid.NewString(),
		ch: make(chan string, bufferSize), // buffered to prevent blocking
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.subscribers[email] = append(h.subscribers[email], sub)

	return sub
}

// Unsubscribe removes a stream and closes its channel.
func (h *Hub) Unsubscribe(email string, sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[email]
	if !lo.Contains(subs, sub) {
		return
	}

	h.subscribers[email] = lo.Filter(subs, func(s *Subscription, _ int) bool {
		return s != sub
	})
	if len(h.subscribers[email]) == 0 {
		delete(h.subscribers, email)
	}

	close(sub.ch)
}

// Publish sends a message to every stream of the account and returns how
// many accepted it. Full streams are skipped.
func (h *Hub) Publish(email, message string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return lo.CountBy(h.subscribers[email], func(s *Subscription) bool {
		return trySend(s.ch, message)
	})
}

// Close sends a shutdown event to every open stream and closes it, so the
// stream handlers return and the server can drain.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	shutdown := FormatEvent(EventShutdown, "bye")
	for email, subs := range h.subscribers {
		for _, s := range subs {
			trySend(s.ch, shutdown)
			close(s.ch)
		}
		delete(h.subscribers, email)
	}
}

// SubscriberCount returns the total number of open streams.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return lo.SumBy(lo.Values(h.subscribers), func(subs []*Subscription) int {
		return len(subs)
	})
}

func trySend(ch chan string, message string) bool {
	select {
	case ch <- message:
		return true
	default:
		return false
	}
}
