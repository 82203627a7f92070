package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Batcher decides which queued requests occupy batch slots and whether an
// occupying request may make progress in the current step.
// Implementations mutate WaitQ and Batch during Admit but do NOT advance
// requests or record metrics; those are Engine concerns handled after Admit
// returns.
type Batcher interface {
	// Name returns the registry name of the policy (e.g. "static").
	Name() string
	// Admit moves requests from the queue head into empty slots according to
	// the policy and returns the newly admitted requests in slot order.
	Admit(ctx AdmitContext) []*Request
	// CanAdvance reports whether req may perform a unit of work this step.
	CanAdvance(req *Request, batch *Batch) bool
}

// AdmitContext provides the inputs for one admission decision.
type AdmitContext struct {
	WaitQ        *WaitQueue
	Batch        *Batch
	MaxBatchSize int
	Now          int64
}

// admitHead dequeues the queue head into slot. Returns nil if the queue is
// empty or the batch is already at capacity.
func admitHead(ctx AdmitContext, slot int) *Request {
	if ctx.WaitQ.Len() == 0 || ctx.Batch.Occupied() >= ctx.MaxBatchSize {
		return nil
	}
	req := ctx.WaitQ.Dequeue()
	req.Admit(ctx.Now)
	ctx.Batch.Assign(slot, req)
	logrus.Debugf("[tick %07d] admitted %s into slot %d", ctx.Now, req.ID, slot)
	return req
}

// StaticBatcher forms fixed cohorts: it only admits when every slot is empty,
// fills as many slots as the queue allows, and keeps cohort members in
// lockstep through prefill. A cohort is replaced only after all of its
// members are done.
type StaticBatcher struct{}

func (s *StaticBatcher) Name() string { return "static" }

func (s *StaticBatcher) Admit(ctx AdmitContext) []*Request {
	if !ctx.Batch.IsEmpty() {
		return nil
	}
	var admitted []*Request
	for _, slot := range ctx.Batch.EmptySlots() {
		req := admitHead(ctx, slot)
		if req == nil {
			break
		}
		admitted = append(admitted, req)
	}
	return admitted
}

// CanAdvance holds decoding members while any cohort member is still
// prefilling, so the cohort starts decode together.
func (s *StaticBatcher) CanAdvance(req *Request, batch *Batch) bool {
	if req.State == StateDecoding {
		return batch.CountInState(StatePrefilling) == 0
	}
	return true
}

// IFBatcher implements in-flight batching: every empty slot is refilled from
// the queue head in the same step it empties, and each slot progresses
// independently, so prefill and decode work share a step.
type IFBatcher struct{}

func (f *IFBatcher) Name() string { return "ifb" }

func (f *IFBatcher) Admit(ctx AdmitContext) []*Request {
	var admitted []*Request
	for _, slot := range ctx.Batch.EmptySlots() {
		req := admitHead(ctx, slot)
		if req == nil {
			break
		}
		admitted = append(admitted, req)
	}
	return admitted
}

func (f *IFBatcher) CanAdvance(_ *Request, _ *Batch) bool { return true }

// IFBatcherWithOnePrefillOnly is in-flight batching with at most one request
// prefilling at a time. A new request is admitted only when no slot is
// prefilling; further empty slots stay empty until that prefill completes.
type IFBatcherWithOnePrefillOnly struct{}

func (o *IFBatcherWithOnePrefillOnly) Name() string { return "ifb-one-prefill" }

func (o *IFBatcherWithOnePrefillOnly) Admit(ctx AdmitContext) []*Request {
	if ctx.Batch.CountInState(StatePrefilling) > 0 {
		return nil
	}
	empty := ctx.Batch.EmptySlots()
	if len(empty) == 0 {
		return nil
	}
	if req := admitHead(ctx, empty[0]); req != nil {
		return []*Request{req}
	}
	return nil
}

func (o *IFBatcherWithOnePrefillOnly) CanAdvance(_ *Request, _ *Batch) bool { return true }

// ValidBatchers is the set of recognized batcher names.
// Shared by IsValidBatcher and NewBatcher to avoid duplication.
var ValidBatchers = map[string]bool{"": true, "static": true, "ifb": true, "ifb-one-prefill": true}

// IsValidBatcher returns true if name is a recognized batcher.
func IsValidBatcher(name string) bool {
	return ValidBatchers[name]
}

// NewBatcher creates a Batcher by name.
// Valid names: "static" (default), "ifb", "ifb-one-prefill".
// Empty string defaults to StaticBatcher (for CLI flag default compatibility).
// Panics on unrecognized names; validate with IsValidBatcher first.
func NewBatcher(name string) Batcher {
	if !IsValidBatcher(name) {
		panic(fmt.Sprintf("unknown batcher %q", name))
	}
	switch name {
	case "", "static":
		return &StaticBatcher{}
	case "ifb":
		return &IFBatcher{}
	case "ifb-one-prefill":
		return &IFBatcherWithOnePrefillOnly{}
	default:
		panic(fmt.Sprintf("unhandled batcher %q", name))
	}
}
