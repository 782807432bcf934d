package engine

import "testing"

func TestBroadcasterDelivers(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(ProgressEvent{EntriesProcessed: 512, CurrentPath: "/r/x"})

	ev := <-ch
	if ev.EntriesProcessed != 512 || ev.CurrentPath != "/r/x" {
		t.Errorf("event = %+v", ev)
	}
}

func TestBroadcasterDropsForSlowConsumer(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Never read; publishing past the buffer must not block.
	for i := 0; i < 200; i++ {
		b.Publish(ProgressEvent{EntriesProcessed: int64(i)})
	}

	if n := len(ch); n != cap(ch) {
		t.Errorf("buffered events = %d, want full buffer %d", n, cap(ch))
	}
}

func TestBroadcasterUnsubscribeCloses(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	b.Unsubscribe(ch)

	if _, open := <-ch; open {
		t.Error("channel still open after Unsubscribe")
	}

	// Publishing with no subscribers is a no-op.
	b.Publish(ProgressEvent{EntriesProcessed: 1})
}
