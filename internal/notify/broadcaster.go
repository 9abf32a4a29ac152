package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hookline/hookline/internal/domain"
)

const (
	// EventScheduleExecuted is published when a dispatch received a response,
	// whatever the status code.
	EventScheduleExecuted = "schedule-executed"
	// EventScheduleUpdated is published when a dispatch failed in transport
	// and only the schedule's derived state changed.
	EventScheduleUpdated = "schedule-updated"
)

// Event is the push-only message delivered to live subscribers of a
// schedule's owner after every fire.
type Event struct {
	Type           string           `json:"type"`
	ScheduleID     string           `json:"scheduleId"`
	Status         domain.Status    `json:"status"`
	LastExecuted   *time.Time       `json:"lastExecuted"`
	ExecutionCount int              `json:"executionCount"`
	NextExecution  *time.Time       `json:"nextExecution"`
	Frequency      domain.Frequency `json:"frequency"`
}

// subscriberBuffer bounds how far a slow consumer may lag before it is
// dropped. Delivery is best-effort; there is no buffering for offline
// subscribers and no retry.
const subscriberBuffer = 16

// Broadcaster fans events out to the live subscribers of each owner. It is
// decoupled from the scheduler, which only holds the Publish capability.
type Broadcaster struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{} // userID → subscriptions
}

func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		logger: logger.With("component", "broadcaster"),
		subs:   make(map[string]map[*Subscription]struct{}),
	}
}

// Subscription is one live consumer. Close is idempotent and safe to call
// concurrently with Publish.
type Subscription struct {
	userID string
	ch     chan Event
	b      *Broadcaster
	once   sync.Once
}

func (s *Subscription) Events() <-chan Event { return s.ch }

// Close removes the subscription and closes its channel. The close happens
// under the broadcaster's write lock while Publish sends under the read
// lock, so a send can never race the close.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.b.mu.Lock()
		s.b.removeLocked(s)
		close(s.ch)
		s.b.mu.Unlock()
	})
}

func (b *Broadcaster) Subscribe(userID string) *Subscription {
	sub := &Subscription{
		userID: userID,
		ch:     make(chan Event, subscriberBuffer),
		b:      b,
	}

	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[*Subscription]struct{})
	}
	b.subs[userID][sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Publish delivers ev to every live subscriber of userID. A subscriber whose
// buffer is full is considered gone and pruned on this publish attempt; its
// channel is closed so the consumer loop terminates.
func (b *Broadcaster) Publish(userID string, ev Event) {
	var stalled []*Subscription

	b.mu.RLock()
	for sub := range b.subs[userID] {
		select {
		case sub.ch <- ev:
		default:
			stalled = append(stalled, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range stalled {
		b.logger.Debug("dropping stalled subscriber", "user_id", userID)
		sub.Close()
	}
}

// SubscriberCount reports live subscriptions across all owners.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, set := range b.subs {
		n += len(set)
	}
	return n
}

func (b *Broadcaster) removeLocked(sub *Subscription) {
	set := b.subs[sub.userID]
	if set == nil {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sub.userID)
	}
}
