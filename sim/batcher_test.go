package sim

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// admitCtx builds an AdmitContext over a fresh queue of n requests.
func admitCtx(batch *Batch, n int) AdmitContext {
	wq := &WaitQueue{}
	for i := 0; i < n; i++ {
		wq.Enqueue(queued(fmt.Sprintf("q%d", i), 0))
	}
	return AdmitContext{WaitQ: wq, Batch: batch, MaxBatchSize: batch.Size(), Now: 5}
}

// inSlot places a request in the given state into slot i.
func inSlot(b *Batch, i int, state RequestState) *Request {
	req := NewRequest(fmt.Sprintf("s%d", i), 0, RequestParams{PrefillTime: 2, ITL: 1, TargetOutputTokens: 3, TotalPrefillChunks: 1})
	req.Admit(0)
	if state == StateDecoding {
		req.Advance(2)
	}
	b.Assign(i, req)
	return req
}

func TestNewBatcher_ValidNames(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"", "static"},
		{"static", "static"},
		{"ifb", "ifb"},
		{"ifb-one-prefill", "ifb-one-prefill"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, NewBatcher(tc.name).Name())
		assert.True(t, IsValidBatcher(tc.name))
	}
	assert.False(t, IsValidBatcher("greedy"))
	assert.Panics(t, func() { NewBatcher("greedy") })
}

func TestStaticBatcher_EmptyBatch_FillsAllSlotsFromHead(t *testing.T) {
	// GIVEN an empty 4-slot batch and 6 queued requests
	b := NewBatch(4)
	ctx := admitCtx(b, 6)

	// WHEN the static batcher admits
	admitted := (&StaticBatcher{}).Admit(ctx)

	// THEN the four oldest requests fill the slots in order
	require.Len(t, admitted, 4)
	for i, req := range admitted {
		assert.Equal(t, fmt.Sprintf("q%d", i), req.ID)
		assert.Same(t, req, b.Slot(i))
		assert.Equal(t, StatePrefilling, req.State)
		assert.Equal(t, int64(5), req.AdmittedTime)
	}
	assert.Equal(t, 2, ctx.WaitQ.Len())
}

func TestStaticBatcher_PartialCohort_NoRefill(t *testing.T) {
	// GIVEN a cohort where one slot already finished
	b := NewBatch(4)
	inSlot(b, 0, StateDecoding)
	ctx := admitCtx(b, 3)

	// WHEN the static batcher admits
	admitted := (&StaticBatcher{}).Admit(ctx)

	// THEN nothing is admitted until the whole cohort is done
	assert.Empty(t, admitted)
	assert.Equal(t, 3, ctx.WaitQ.Len())
}

func TestStaticBatcher_CanAdvance_HoldsDecodeWhilePrefilling(t *testing.T) {
	b := NewBatch(2)
	dec := inSlot(b, 0, StateDecoding)
	pre := inSlot(b, 1, StatePrefilling)
	s := &StaticBatcher{}

	assert.False(t, s.CanAdvance(dec, b))
	assert.True(t, s.CanAdvance(pre, b))

	b.Release(1)
	assert.True(t, s.CanAdvance(dec, b))
}

func TestIFBatcher_RefillsEveryEmptySlot(t *testing.T) {
	// GIVEN a batch with slots 1 and 3 empty
	b := NewBatch(4)
	inSlot(b, 0, StateDecoding)
	inSlot(b, 2, StatePrefilling)
	ctx := admitCtx(b, 5)

	// WHEN the in-flight batcher admits
	admitted := (&IFBatcher{}).Admit(ctx)

	// THEN both empty slots are filled from the queue head
	require.Len(t, admitted, 2)
	assert.Same(t, admitted[0], b.Slot(1))
	assert.Same(t, admitted[1], b.Slot(3))
	assert.Equal(t, "q0", admitted[0].ID)
	assert.Equal(t, 4, b.Occupied())
	assert.True(t, (&IFBatcher{}).CanAdvance(b.Slot(0), b))
}

func TestIFBatcher_ShortQueue_AdmitsWhatIsAvailable(t *testing.T) {
	b := NewBatch(4)
	ctx := admitCtx(b, 1)
	admitted := (&IFBatcher{}).Admit(ctx)
	assert.Len(t, admitted, 1)
	assert.Equal(t, 3, len(b.EmptySlots()))
}

func TestIFBatcherWithOnePrefillOnly_Admission(t *testing.T) {
	t.Run("prefill in progress blocks admission", func(t *testing.T) {
		b := NewBatch(4)
		inSlot(b, 0, StatePrefilling)
		ctx := admitCtx(b, 3)
		assert.Empty(t, (&IFBatcherWithOnePrefillOnly{}).Admit(ctx))
		assert.Equal(t, 3, ctx.WaitQ.Len())
	})
	t.Run("no prefill admits exactly one into first empty slot", func(t *testing.T) {
		b := NewBatch(4)
		inSlot(b, 0, StateDecoding)
		ctx := admitCtx(b, 3)
		admitted := (&IFBatcherWithOnePrefillOnly{}).Admit(ctx)
		require.Len(t, admitted, 1)
		assert.Same(t, admitted[0], b.Slot(1))
		assert.Equal(t, 1, b.CountInState(StatePrefilling))
	})
	t.Run("full batch admits nothing", func(t *testing.T) {
		b := NewBatch(1)
		inSlot(b, 0, StateDecoding)
		assert.Empty(t, (&IFBatcherWithOnePrefillOnly{}).Admit(admitCtx(b, 1)))
	})
}

func TestAdmitHead_RespectsMaxBatchSize(t *testing.T) {
	// GIVEN a context whose limit is below the slot count
	b := NewBatch(4)
	ctx := admitCtx(b, 4)
	ctx.MaxBatchSize = 2

	// WHEN the in-flight batcher admits
	admitted := (&IFBatcher{}).Admit(ctx)

	// THEN admission stops at the limit
	assert.Len(t, admitted, 2)
	assert.Equal(t, 2, b.Occupied())
}
