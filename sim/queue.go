// Implements the WaitQueue, which holds all requests waiting for a batch slot.
// Requests are enqueued on arrival

package sim

import (
	"fmt"
	"strings"
)

// WaitQueue represents a FIFO queue of requests waiting to be admitted into a
// batch slot. Requests are ordered by (ArrivalTime, Seq); Seq is assigned on
// enqueue and breaks ties among requests that arrived in the same step.
type WaitQueue struct {
	queue   []*Request // FIFO queue of requests
	nextSeq int64
}

// Enqueue adds a request to the back of the wait queue and stamps its
// arrival sequence number. Enqueuing a request that arrived before the
// current tail would break FIFO ordering and panics.
func (wq *WaitQueue) Enqueue(r *Request) {
	if r == nil {
		panic("Enqueue: request must not be nil")
	}
	if r.State != StateQueued {
		panic(fmt.Sprintf("Enqueue: request %s is %s, want %s", r.ID, r.State, StateQueued))
	}
	if n := len(wq.queue); n > 0 && wq.queue[n-1].ArrivalTime > r.ArrivalTime {
		panic(fmt.Sprintf("Enqueue: request %s arrived at %d, before tail arrival %d", r.ID, r.ArrivalTime, wq.queue[n-1].ArrivalTime))
	}
	r.Seq = wq.nextSeq
	wq.nextSeq++
	wq.queue = append(wq.queue, r)
}

func (wq *WaitQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, val := range wq.queue {
		sb.WriteString(fmt.Sprint(val)) // Convert value to string
		if i < len(wq.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}

// Len returns the number of requests in the queue.
func (wq *WaitQueue) Len() int {
	return len(wq.queue)
}

// Peek returns the request at the front of the queue without removing it.
// Returns nil if the queue is empty.
func (wq *WaitQueue) Peek() *Request {
	if len(wq.queue) == 0 {
		return nil
	}
	return wq.queue[0]
}

// Items returns the queue contents for iteration.
// The returned slice is the queue's internal storage; callers MUST NOT
// append to or reslice it.
func (wq *WaitQueue) Items() []*Request {
	return wq.queue
}

// Dequeue removes and returns the request at the front of the queue.
// Returns nil if the queue is empty.
func (wq *WaitQueue) Dequeue() *Request {
	if len(wq.queue) == 0 {
		return nil
	}
	next := wq.queue[0]
	wq.queue[0] = nil
	wq.queue = wq.queue[1:]
	return next
}
