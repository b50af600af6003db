package events

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Message is one published item.
type Message struct {
	Topic string
	Data  any
}

type subscriber struct {
	id      string
	pattern string
	ch      chan Message
	ctx     context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func (s *subscriber) timedSend(msg Message, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if timeout <= 0 {
		select {
		case s.ch <- msg:
			return true
		default:
			return false
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case s.ch <- msg:
		return true
	case <-timer.C:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		s.cancel()
		close(s.ch)
	}
}

// Bus is an in-memory publish/subscribe bus. Topics are ':' separated and
// subscription patterns may use '*' for a whole segment, or alone to match
// every topic.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*subscriber // pattern -> id -> subscriber
	counter     uint64
	dropped     atomic.Uint64
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[string]map[string]*subscriber)}
}

// Subscribe returns a channel receiving every message whose topic matches
// pattern and a function that ends the subscription and closes the channel.
func (b *Bus) Subscribe(pattern string, bufferSize int) (<-chan Message, func()) {
	id := fmt.Sprintf("sub-%d", atomic.AddUint64(&b.counter, 1))
	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscriber{
		id:      id,
		pattern: pattern,
		ch:      make(chan Message, bufferSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[pattern]; !ok {
		b.subscribers[pattern] = make(map[string]*subscriber)
	}
	b.subscribers[pattern][id] = sub

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if subs, ok := b.subscribers[pattern]; ok {
			if s, ok := subs[id]; ok {
				s.close()
				delete(subs, id)
				if len(subs) == 0 {
					delete(b.subscribers, pattern)
				}
			}
		}
	}
	return sub.ch, unsubscribe
}

// Publish delivers data to every matching subscriber. With a timeout of
// zero or less a full subscriber drops the message at once, otherwise
// Publish waits at most timeout for it. Dropped messages are counted.
// Subscribers are collected under the read lock and served after it is
// released, so a slow subscriber never holds up Subscribe or unsubscribe.
func (b *Bus) Publish(topic string, data any, timeout time.Duration) {
	msg := Message{Topic: topic, Data: data}

	b.mu.RLock()
	var targets []*subscriber
	for pattern, subs := range b.subscribers {
		if !matchTopic(pattern, topic) {
			continue
		}
		for _, sub := range subs {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		select {
		case <-sub.ctx.Done():
			continue
		default:
			if !sub.timedSend(msg, timeout) {
				b.dropped.Add(1)
			}
		}
	}
}

// Dropped returns how many deliveries were dropped.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Shutdown closes every subscription.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.subscribers {
		for _, sub := range subs {
			sub.close()
		}
	}
	b.subscribers = make(map[string]map[string]*subscriber)
}

func matchTopic(pattern, topic string) bool {
	if pattern == "" || topic == "" {
		return false
	}
	if pattern == "*" || pattern == topic {
		return true
	}
	patternParts := strings.Split(pattern, ":")
	topicParts := strings.Split(topic, ":")
	if len(patternParts) != len(topicParts) {
		return false
	}
	for i := range patternParts {
		if patternParts[i] != "*" && patternParts[i] != topicParts[i] {
			return false
		}
	}
	return true
}
