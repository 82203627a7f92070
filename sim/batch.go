// batch.go
//
// Defines the Batch struct which holds the fixed set of execution slots that
// bound how many requests progress in one simulation step.

package sim

import "fmt"

// Batch is a fixed-size ordered collection of slots. Each slot is either
// empty (nil) or holds exactly one request. The number of slots never
// changes after NewBatch.
type Batch struct {
	slots []*Request
}

// NewBatch creates a Batch with size empty slots. size must be positive.
func NewBatch(size int) *Batch {
	if size <= 0 {
		panic(fmt.Sprintf("NewBatch: size must be > 0, got %d", size))
	}
	return &Batch{slots: make([]*Request, size)}
}

// Size returns the number of slots.
func (b *Batch) Size() int {
	return len(b.slots)
}

// Slot returns the request occupying slot i, or nil.
func (b *Batch) Slot(i int) *Request {
	return b.slots[i]
}

// Assign places req into empty slot i.
func (b *Batch) Assign(i int, req *Request) {
	if b.slots[i] != nil {
		panic(fmt.Sprintf("Assign: slot %d already holds %s", i, b.slots[i].ID))
	}
	b.slots[i] = req
}

// Release empties slot i and returns its previous occupant.
func (b *Batch) Release(i int) *Request {
	req := b.slots[i]
	b.slots[i] = nil
	return req
}

// Occupied returns the number of non-empty slots.
func (b *Batch) Occupied() int {
	n := 0
	for _, req := range b.slots {
		if req != nil {
			n++
		}
	}
	return n
}

// IsEmpty reports whether every slot is empty.
func (b *Batch) IsEmpty() bool {
	return b.Occupied() == 0
}

// EmptySlots returns the indices of empty slots in ascending order.
func (b *Batch) EmptySlots() []int {
	var idx []int
	for i, req := range b.slots {
		if req == nil {
			idx = append(idx, i)
		}
	}
	return idx
}

// CountInState returns how many occupying requests are in state.
func (b *Batch) CountInState(state RequestState) int {
	n := 0
	for _, req := range b.slots {
		if req != nil && req.State == state {
			n++
		}
	}
	return n
}
