package batch

import (
	"context"
	"errors"
	"sync"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKind = "content#testCustomBatchResponse"

// fakeSubmitter answers every entry in reverse order, failing the ids in failIDs.
type fakeSubmitter struct {
	mu       sync.Mutex
	kind     string
	failIDs  map[int64]bool
	drop     map[int64]bool
	extra    []Result[string]
	err      error
	requests [][]Entry[string]
}

func (f *fakeSubmitter) Submit(ctx context.Context, entries []Entry[string]) (*Response[string], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, entries)
	if f.err != nil {
		return nil, f.err
	}

	kind := f.kind
	if kind == "" {
		kind = testKind
	}
	resp := &Response[string]{Kind: kind}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if f.drop[e.BatchID] {
			continue
		}
		if f.failIDs[e.BatchID] {
			resp.Entries = append(resp.Entries, Result[string]{
				BatchID: e.BatchID,
				Value:   "should be cleared",
				Errors:  []ItemError{{Code: "notFound", Message: "item " + e.Item + " not found"}},
			})
			continue
		}
		resp.Entries = append(resp.Entries, Result[string]{BatchID: e.BatchID, Value: "done:" + e.Item})
	}
	resp.Entries = append(resp.Entries, f.extra...)
	return resp, nil
}

func entries(ids ...int64) []Entry[string] {
	out := make([]Entry[string], len(ids))
	for i, id := range ids {
		out[i] = Entry[string]{BatchID: id, Method: MethodDelete, Item: string(rune('a' + i))}
	}
	return out
}

func newCorrelator(sub Submitter[string, string], cfg Config) *Correlator[string, string] {
	if cfg.ExpectedKind == "" {
		cfg.ExpectedKind = testKind
	}
	return NewCorrelator[string, string](sub, cfg, zerolog.Nop())
}

func TestExecute_CorrelatesByBatchID(t *testing.T) {
	sub := &fakeSubmitter{}
	ids := []int64{42, -7, 1000000, 0, 5}

	results, err := newCorrelator(sub, Config{}).Execute(context.Background(), entries(ids...))
	require.NoError(t, err)

	require.Len(t, results, len(ids))
	for i, id := range ids {
		r, ok := results[id]
		require.True(t, ok, "missing result for %d", id)
		assert.Equal(t, id, r.BatchID)
		assert.Equal(t, "done:"+string(rune('a'+i)), r.Value)
		assert.True(t, r.OK())
	}
	assert.Len(t, sub.requests, 1, "a batch within MaxEntries is one request")
}

func TestExecute_SuccessAndErrorAreExclusive(t *testing.T) {
	sub := &fakeSubmitter{failIDs: map[int64]bool{2: true}}

	results, err := newCorrelator(sub, Config{}).Execute(context.Background(), entries(1, 2))
	require.NoError(t, err)

	ok := results[1]
	assert.True(t, ok.OK())
	assert.Empty(t, ok.Errors)
	assert.NoError(t, ok.Err())
	assert.Equal(t, "", ok.FlatError())
	assert.NotEmpty(t, ok.Value)

	failed := results[2]
	assert.False(t, failed.OK())
	assert.Empty(t, failed.Value, "failed entries carry no payload")
	assert.Equal(t, "notFound: item b not found", failed.FlatError())

	var itemErrs *ItemErrors
	require.ErrorAs(t, failed.Err(), &itemErrs)
	assert.Equal(t, int64(2), itemErrs.BatchID)
	assert.Equal(t, "batch entry 2: notFound: item b not found", itemErrs.Error())
}

func TestExecute_DeleteFlattening(t *testing.T) {
	sub := &fakeSubmitter{failIDs: map[int64]bool{9: true}}

	results, err := newCorrelator(sub, Config{}).Execute(context.Background(), entries(7, 3, 9))
	require.NoError(t, err)

	flat := make(map[int64]string, len(results))
	for id, r := range results {
		flat[id] = r.FlatError()
	}
	assert.Equal(t, map[int64]string{7: "", 3: "", 9: "notFound: item c not found"}, flat)
}

func TestExecute_Validation(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry[string]
		wantErr error
	}{
		{
			name:    "duplicate id",
			entries: []Entry[string]{{BatchID: 1, Method: MethodGet}, {BatchID: 1, Method: MethodGet}},
			wantErr: ErrDuplicateBatchID,
		},
		{
			name:    "invalid method",
			entries: []Entry[string]{{BatchID: 1, Method: "update"}},
			wantErr: ErrInvalidMethod,
		},
		{
			name:    "empty method",
			entries: []Entry[string]{{BatchID: 1}},
			wantErr: ErrInvalidMethod,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubmitter{}
			_, err := newCorrelator(sub, Config{}).Execute(context.Background(), tt.entries)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, sub.requests, "invalid batches are not submitted")
		})
	}
}

func TestExecute_Empty(t *testing.T) {
	sub := &fakeSubmitter{}
	results, err := newCorrelator(sub, Config{}).Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Empty(t, sub.requests)
}

func TestExecute_Chunking(t *testing.T) {
	sub := &fakeSubmitter{}
	ids := make([]int64, 7)
	for i := range ids {
		ids[i] = int64(i * 10)
	}

	results, err := newCorrelator(sub, Config{MaxEntries: 3}).Execute(context.Background(), entries(ids...))
	require.NoError(t, err)

	assert.Len(t, results, 7)
	require.Len(t, sub.requests, 3)
	assert.Len(t, sub.requests[0], 3)
	assert.Len(t, sub.requests[1], 3)
	assert.Len(t, sub.requests[2], 1)
}

func TestExecute_KindMismatch(t *testing.T) {
	t.Run("lenient", func(t *testing.T) {
		sub := &fakeSubmitter{kind: "content#somethingElse"}
		before := promtest.ToFloat64(batchKindMismatchTotal.WithLabelValues(testKind))

		results, err := newCorrelator(sub, Config{}).Execute(context.Background(), entries(1, 2))
		require.NoError(t, err)
		assert.Empty(t, results)

		after := promtest.ToFloat64(batchKindMismatchTotal.WithLabelValues(testKind))
		assert.Equal(t, 1.0, after-before)
	})

	t.Run("strict", func(t *testing.T) {
		sub := &fakeSubmitter{kind: "content#somethingElse"}

		_, err := newCorrelator(sub, Config{Strict: true}).Execute(context.Background(), entries(1, 2))
		require.ErrorIs(t, err, ErrUnexpectedKind)

		var kindErr *KindError
		require.ErrorAs(t, err, &kindErr)
		assert.Equal(t, "content#somethingElse", kindErr.Got)
		assert.Equal(t, testKind, kindErr.Expected)
	})

	t.Run("lenient mismatch only drops its chunk", func(t *testing.T) {
		calls := 0
		sub := SubmitFunc[string, string](func(ctx context.Context, es []Entry[string]) (*Response[string], error) {
			calls++
			kind := testKind
			if calls == 1 {
				kind = "content#wrong"
			}
			resp := &Response[string]{Kind: kind}
			for _, e := range es {
				resp.Entries = append(resp.Entries, Result[string]{BatchID: e.BatchID, Value: e.Item})
			}
			return resp, nil
		})

		results, err := newCorrelator(sub, Config{MaxEntries: 2}).Execute(context.Background(), entries(1, 2, 3))
		require.NoError(t, err)
		assert.Len(t, results, 1)
		assert.Contains(t, results, int64(3))
	})
}

func TestExecute_MissingAndUnknownIDs(t *testing.T) {
	newSub := func() *fakeSubmitter {
		return &fakeSubmitter{
			drop:  map[int64]bool{2: true},
			extra: []Result[string]{{BatchID: 99, Value: "stray"}},
		}
	}

	t.Run("lenient", func(t *testing.T) {
		results, err := newCorrelator(newSub(), Config{}).Execute(context.Background(), entries(1, 2, 3))
		require.NoError(t, err)
		assert.Len(t, results, 2)
		assert.NotContains(t, results, int64(2))
		assert.NotContains(t, results, int64(99), "unknown ids are ignored")
	})

	t.Run("strict", func(t *testing.T) {
		_, err := newCorrelator(newSub(), Config{Strict: true}).Execute(context.Background(), entries(1, 2, 3))
		require.ErrorIs(t, err, ErrMissingResult)
		assert.Contains(t, err.Error(), "[2]")
	})
}

func TestExecute_SubmitErrorIsFatal(t *testing.T) {
	boom := errors.New("boom")
	sub := &fakeSubmitter{err: boom}

	results, err := newCorrelator(sub, Config{}).Execute(context.Background(), entries(1))
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, results)
}

func TestExecute_CancelledBeforeSubmit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sub := &fakeSubmitter{}
	results, err := newCorrelator(sub, Config{}).Execute(ctx, entries(1, 2))
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, sub.requests)
}

func TestExecuteStream(t *testing.T) {
	sub := &fakeSubmitter{failIDs: map[int64]bool{3: true}}

	in := make(chan Entry[string])
	go func() {
		defer close(in)
		for _, e := range entries(5, 3, 8) {
			in <- e
		}
	}()

	results, err := newCorrelator(sub, Config{}).ExecuteStream(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.False(t, results[3].OK())
	assert.True(t, results[5].OK())
	assert.True(t, results[8].OK())
	assert.Len(t, sub.requests, 1, "the drained stream is one logical batch")
}

func TestExecuteStream_CancelledWhileDraining(t *testing.T) {
	sub := &fakeSubmitter{}
	ctx, cancel := context.WithCancel(context.Background())

	in := make(chan Entry[string], 1)
	in <- Entry[string]{BatchID: 1, Method: MethodGet}
	cancel()

	results, err := newCorrelator(sub, Config{}).ExecuteStream(ctx, in)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, sub.requests)
}

func TestBatchEntriesMetric(t *testing.T) {
	kind := "content#metricCustomBatchResponse"
	sub := &fakeSubmitter{kind: kind, failIDs: map[int64]bool{2: true}, drop: map[int64]bool{3: true}}

	okBefore := promtest.ToFloat64(batchEntriesTotal.WithLabelValues(kind, "ok"))
	errBefore := promtest.ToFloat64(batchEntriesTotal.WithLabelValues(kind, "error"))
	missBefore := promtest.ToFloat64(batchEntriesTotal.WithLabelValues(kind, "missing"))

	_, err := newCorrelator(sub, Config{ExpectedKind: kind}).Execute(context.Background(), entries(1, 2, 3))
	require.NoError(t, err)

	assert.Equal(t, 1.0, promtest.ToFloat64(batchEntriesTotal.WithLabelValues(kind, "ok"))-okBefore)
	assert.Equal(t, 1.0, promtest.ToFloat64(batchEntriesTotal.WithLabelValues(kind, "error"))-errBefore)
	assert.Equal(t, 1.0, promtest.ToFloat64(batchEntriesTotal.WithLabelValues(kind, "missing"))-missBefore)
}

func TestMethodValid(t *testing.T) {
	for _, m := range []Method{MethodInsert, MethodDelete, MethodGet} {
		assert.True(t, m.Valid(), m)
	}
	assert.False(t, Method("patch").Valid())
}
