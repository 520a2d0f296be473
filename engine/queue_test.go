package engine

import (
	"testing"
)

func TestCommandQueueOrder(t *testing.T) {
	q := NewCommandQueue(8)
	for i := 0; i < 5; i++ {
		if !q.Push(Command{Kind: CmdSeek, Pos: int64(i)}) {
			t.Fatalf("push %d should succeed", i)
		}
	}
	for i := 0; i < 5; i++ {
		c, ok := q.Pop()
		if !ok || c.Pos != int64(i) {
			t.Fatalf("pop %d got %+v ok=%v", i, c, ok)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Errorf("empty queue should not pop")
	}
}

func TestCommandQueueFull(t *testing.T) {
	q := NewCommandQueue(4)
	for i := 0; i < 4; i++ {
		if !q.Push(Command{}) {
			t.Fatalf("push %d into empty queue should succeed", i)
		}
	}
	if q.Push(Command{}) {
		t.Errorf("full queue should reject the push")
	}
	q.Pop()
	if !q.Push(Command{}) {
		t.Errorf("queue with one free spot should accept a push")
	}
}

func TestCommandQueueCapacityMustBePowerOfTwo(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("capacity 3 should panic")
		}
	}()
	NewCommandQueue(3)
}

func TestEventQueuePeekPop(t *testing.T) {
	q := NewEventQueue(8)
	q.Push(Event{Frame: 100})
	q.Push(Event{Frame: 200})

	ev, ok := q.Peek()
	if !ok || ev.Frame != 100 {
		t.Fatalf("peek should see the first event, got %+v ok=%v", ev, ok)
	}
	if q.Len() != 2 {
		t.Errorf("peek should not consume, len = %d", q.Len())
	}
	q.Pop()
	if ev, _ := q.Peek(); ev.Frame != 200 {
		t.Errorf("after pop the next event should surface, got frame %d", ev.Frame)
	}
}

func TestEventQueueWraps(t *testing.T) {
	q := NewEventQueue(4)
	for round := 0; round < 3; round++ {
		for i := 0; i < 4; i++ {
			if !q.Push(Event{Frame: uint64(round*4 + i)}) {
				t.Fatalf("round %d push %d should succeed", round, i)
			}
		}
		if q.Push(Event{}) {
			t.Fatalf("round %d: full ring should reject", round)
		}
		for i := 0; i < 4; i++ {
			ev, ok := q.Pop()
			if !ok || ev.Frame != uint64(round*4+i) {
				t.Fatalf("round %d pop %d got %+v", round, i, ev)
			}
		}
	}
}
