package transport

import (
	"testing"
	"time"

	"github.com/diivious/eigrpd/internal/timerutil"
)

func TestQueueFIFOOrder(t *testing.T) {
	q := New()
	q.Push(&Packet{Sequence: 1})
	q.Push(&Packet{Sequence: 2})
	q.Push(&Packet{Sequence: 3})

	if q.Len() != 3 {
		t.Fatalf("expected len 3, got %d", q.Len())
	}
	if got := q.Pop(); got.Sequence != 1 {
		t.Fatalf("expected seq 1 first, got %d", got.Sequence)
	}
	if got := q.Head(); got.Sequence != 2 {
		t.Fatalf("expected head seq 2, got %d", got.Sequence)
	}
}

func TestQueueEmptyPopReturnsNil(t *testing.T) {
	q := New()
	if q.Pop() != nil {
		t.Fatal("expected nil pop on empty queue")
	}
	if !q.Empty() {
		t.Fatal("expected Empty() true")
	}
}

func TestQueueDrainStopsTimers(t *testing.T) {
	q := New()
	fired := false
	stopMe := &Packet{Timer: timerutil.New(time.Hour, func() { fired = true })}
	q.Push(stopMe)
	drained := q.Drain()
	if len(drained) != 1 {
		t.Fatalf("expected 1 drained packet, got %d", len(drained))
	}
	if !q.Empty() {
		t.Fatal("expected queue empty after drain")
	}
	if stopMe.Timer.Running() {
		t.Fatal("expected drain to stop the packet's retransmit timer")
	}
	_ = fired
}
