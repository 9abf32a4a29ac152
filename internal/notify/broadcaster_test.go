package notify

import (
	"log/slog"
	"testing"

	"github.com/hookline/hookline/internal/domain"
)

func newTestBroadcaster() *Broadcaster {
	return NewBroadcaster(slog.Default())
}

func TestPublish_DeliversToOwnerOnly(t *testing.T) {
	b := newTestBroadcaster()
	alice := b.Subscribe("alice")
	bob := b.Subscribe("bob")
	defer alice.Close()
	defer bob.Close()

	b.Publish("alice", Event{Type: EventScheduleExecuted, ScheduleID: "s1"})

	select {
	case ev := <-alice.Events():
		if ev.ScheduleID != "s1" {
			t.Errorf("scheduleId = %q, want s1", ev.ScheduleID)
		}
	default:
		t.Fatal("alice received nothing")
	}

	select {
	case ev := <-bob.Events():
		t.Fatalf("bob received %v, want nothing", ev)
	default:
	}
}

func TestPublish_NoSubscribersIsNoop(t *testing.T) {
	b := newTestBroadcaster()
	b.Publish("nobody", Event{Type: EventScheduleUpdated})
}

func TestPublish_FanOut(t *testing.T) {
	b := newTestBroadcaster()
	first := b.Subscribe("u1")
	second := b.Subscribe("u1")
	defer first.Close()
	defer second.Close()

	b.Publish("u1", Event{Type: EventScheduleExecuted, Status: domain.StatusExecuted})

	for _, sub := range []*Subscription{first, second} {
		select {
		case ev := <-sub.Events():
			if ev.Status != domain.StatusExecuted {
				t.Errorf("status = %q, want Executed", ev.Status)
			}
		default:
			t.Fatal("subscriber received nothing")
		}
	}
}

func TestClose_Idempotent(t *testing.T) {
	b := newTestBroadcaster()
	sub := b.Subscribe("u1")
	sub.Close()
	sub.Close() // must not panic

	if n := b.SubscriberCount(); n != 0 {
		t.Errorf("subscriber count = %d, want 0", n)
	}

	// Publishing after close must not panic or deliver.
	b.Publish("u1", Event{Type: EventScheduleExecuted})
	if _, open := <-sub.Events(); open {
		t.Error("expected channel to be closed")
	}
}

func TestPublish_PrunesStalledSubscriber(t *testing.T) {
	b := newTestBroadcaster()
	sub := b.Subscribe("u1")

	// Fill the buffer without consuming, then publish once more.
	for i := 0; i < subscriberBuffer; i++ {
		b.Publish("u1", Event{Type: EventScheduleExecuted})
	}
	b.Publish("u1", Event{Type: EventScheduleExecuted})

	if n := b.SubscriberCount(); n != 0 {
		t.Errorf("subscriber count = %d, want 0 after pruning", n)
	}

	// Buffered events drain, then the channel reports closed.
	drained := 0
	for range sub.Events() {
		drained++
	}
	if drained != subscriberBuffer {
		t.Errorf("drained %d events, want %d", drained, subscriberBuffer)
	}
}

func TestSubscriberCount(t *testing.T) {
	b := newTestBroadcaster()
	a := b.Subscribe("u1")
	c := b.Subscribe("u2")

	if n := b.SubscriberCount(); n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
	a.Close()
	if n := b.SubscriberCount(); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
	c.Close()
}
