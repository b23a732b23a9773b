package raknet

import "testing"

func TestSendQueuesPriorityFlushIntervals(t *testing.T) {
	q := NewSendQueues()
	q.Push(PriorityHigh, Frame{Body: []byte("h")})
	q.Push(PriorityMedium, Frame{Body: []byte("m")})
	q.Push(PriorityLow, Frame{Body: []byte("l")})

	due := q.Tick() // tick 1: high only
	if len(due) != 1 || string(due[0].Body) != "h" {
		t.Fatalf("tick 1: expected only High frame, got %v", due)
	}

	q.Push(PriorityHigh, Frame{Body: []byte("h2")})
	due = q.Tick() // tick 2: high + medium
	bodies := bodiesOf(due)
	if len(bodies) != 2 || bodies[0] != "h2" || bodies[1] != "m" {
		t.Fatalf("tick 2: expected High+Medium, got %v", bodies)
	}

	q.Push(PriorityHigh, Frame{Body: []byte("h3")})
	due = q.Tick() // tick 3: high only
	if len(due) != 1 {
		t.Fatalf("tick 3: expected only High, got %v", bodiesOf(due))
	}

	q.Push(PriorityHigh, Frame{Body: []byte("h4")})
	due = q.Tick() // tick 4: high + medium + low
	bodies = bodiesOf(due)
	if len(bodies) != 2 || bodies[0] != "h4" || bodies[1] != "l" {
		t.Fatalf("tick 4: expected High+Low, got %v", bodies)
	}
}

func TestSendQueuesIsEmptyIsDerived(t *testing.T) {
	q := NewSendQueues()
	if !q.IsEmpty() {
		t.Fatal("new queue must be empty")
	}
	q.Push(PriorityLow, Frame{Body: []byte("x")})
	if q.IsEmpty() {
		t.Fatal("queue with a pushed frame must not be empty")
	}
	q.Tick()
	q.Tick()
	q.Tick()
	due := q.Tick() // 4th tick flushes Low
	if len(due) != 1 {
		t.Fatalf("expected low priority frame flushed on 4th tick, got %v", due)
	}
	if !q.IsEmpty() {
		t.Fatal("queue must be empty again after its only frame flushed")
	}
}

func bodiesOf(frames []Frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = string(f.Body)
	}
	return out
}
