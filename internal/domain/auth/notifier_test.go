package auth

import (
	"testing"
	"time"
)

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBroadcaster_PublishOrder(t *testing.T) {
	b := NewBroadcaster(4)
	ch, unsub := b.Subscribe()
	defer unsub()

	b.Publish(Event{Kind: EventSignedIn})
	b.Publish(Event{Kind: EventUserUpdated})
	b.Publish(Event{Kind: EventSignedOut})

	if got := recvEvent(t, ch).Kind; got != EventSignedIn {
		t.Errorf("first event = %v, want %v", got, EventSignedIn)
	}
	if got := recvEvent(t, ch).Kind; got != EventUserUpdated {
		t.Errorf("second event = %v, want %v", got, EventUserUpdated)
	}
	if got := recvEvent(t, ch).Kind; got != EventSignedOut {
		t.Errorf("third event = %v, want %v", got, EventSignedOut)
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster(1)
	ch, unsub := b.Subscribe()

	unsub()
	unsub() // idempotent

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after unsubscribe")
	}

	// publishing after unsubscribe must not panic
	b.Publish(Event{Kind: EventSignedIn})
}

func TestBroadcaster_MultipleSubscribers(t *testing.T) {
	b := NewBroadcaster(2)
	ch1, unsub1 := b.Subscribe()
	ch2, unsub2 := b.Subscribe()
	defer unsub1()
	defer unsub2()

	b.Publish(Event{Kind: EventPasswordRecovery})

	if got := recvEvent(t, ch1).Kind; got != EventPasswordRecovery {
		t.Errorf("subscriber 1 got %v", got)
	}
	if got := recvEvent(t, ch2).Kind; got != EventPasswordRecovery {
		t.Errorf("subscriber 2 got %v", got)
	}
}

func TestBroadcaster_DropsOldestWhenFull(t *testing.T) {
	b := NewBroadcaster(1)
	ch, unsub := b.Subscribe()
	defer unsub()

	b.Publish(Event{Kind: EventSignedIn})
	b.Publish(Event{Kind: EventSignedOut})

	if got := recvEvent(t, ch).Kind; got != EventSignedOut {
		t.Errorf("got %v, want newest event %v", got, EventSignedOut)
	}
}

func TestBroadcaster_StopAll(t *testing.T) {
	b := NewBroadcaster(1)
	ch, _ := b.Subscribe()

	b.StopAll()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after StopAll")
	}

	// new subscriptions after StopAll get a closed channel
	ch2, _ := b.Subscribe()
	if _, ok := <-ch2; ok {
		t.Error("expected closed channel for post-StopAll subscription")
	}
}
