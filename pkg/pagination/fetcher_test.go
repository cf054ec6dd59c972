package pagination

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

// fakePages serves pages keyed by cursor and records every request.
type fakePages struct {
	pages    map[string]*Page[int]
	errs     map[string]error
	requests []PageRequest
}

func (f *fakePages) fetch(ctx context.Context, req PageRequest) (*Page[int], error) {
	f.requests = append(f.requests, req)
	if err, ok := f.errs[req.Cursor]; ok {
		return nil, err
	}
	page, ok := f.pages[req.Cursor]
	if !ok {
		return nil, fmt.Errorf("unknown cursor %q", req.Cursor)
	}
	return page, nil
}

func seq(from, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = from + i
	}
	return out
}

func TestFetchAll_TwoPages(t *testing.T) {
	fake := &fakePages{pages: map[string]*Page[int]{
		"":  {Items: seq(0, 50), NextCursor: "X"},
		"X": {Items: seq(50, 12)},
	}}

	items, err := NewFetcher(fake.fetch, Config{PageSize: 50, Resource: "test"}).FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	if len(items) != 62 {
		t.Errorf("len(items) = %d, want 62", len(items))
	}
	if !reflect.DeepEqual(items, seq(0, 62)) {
		t.Error("items are not in page order")
	}
	if len(fake.requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(fake.requests))
	}
	if fake.requests[0].Cursor != "" {
		t.Errorf("first request cursor = %q, want empty", fake.requests[0].Cursor)
	}
	if fake.requests[1].Cursor != "X" {
		t.Errorf("second request cursor = %q, want X", fake.requests[1].Cursor)
	}
	for i, req := range fake.requests {
		if req.PageSize != 50 {
			t.Errorf("request %d page size = %d, want 50", i, req.PageSize)
		}
	}
}

func TestFetchAll_EmptyFinalPage(t *testing.T) {
	fake := &fakePages{pages: map[string]*Page[int]{
		"":   {Items: seq(0, 3), NextCursor: "p2"},
		"p2": {Items: seq(3, 2), NextCursor: "p3"},
		"p3": {},
	}}

	items, err := NewFetcher(fake.fetch, DefaultConfig()).FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if !reflect.DeepEqual(items, seq(0, 5)) {
		t.Errorf("items = %v, want %v", items, seq(0, 5))
	}
	if len(fake.requests) != 3 {
		t.Errorf("requests = %d, want 3", len(fake.requests))
	}
}

func TestFetchAll_EmptyNonFinalPageContinues(t *testing.T) {
	fake := &fakePages{pages: map[string]*Page[int]{
		"":   {Items: seq(0, 2), NextCursor: "p2"},
		"p2": {NextCursor: "p3"},
		"p3": {Items: seq(2, 2)},
	}}

	items, err := NewFetcher(fake.fetch, DefaultConfig()).FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if !reflect.DeepEqual(items, seq(0, 4)) {
		t.Errorf("items = %v, want %v", items, seq(0, 4))
	}
}

func TestFetchAll_EmptyCollection(t *testing.T) {
	fake := &fakePages{pages: map[string]*Page[int]{"": {}}}

	items, err := NewFetcher(fake.fetch, DefaultConfig()).FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("items = %#v, want empty non-nil slice", items)
	}
}

func TestFetchAll_ErrorIsFatal(t *testing.T) {
	boom := errors.New("boom")
	fake := &fakePages{
		pages: map[string]*Page[int]{"": {Items: seq(0, 5), NextCursor: "p2"}},
		errs:  map[string]error{"p2": boom},
	}

	items, err := NewFetcher(fake.fetch, Config{Resource: "products"}).FetchAll(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped boom", err)
	}
	if !strings.Contains(err.Error(), "products page 2") {
		t.Errorf("error %q should name the failing page", err)
	}
	if items != nil {
		t.Errorf("items = %v, want nil on failure", items)
	}
	if len(fake.requests) != 2 {
		t.Errorf("requests = %d, want 2 (no retries)", len(fake.requests))
	}
}

func TestFetchAll_CancelledBeforeFirstPage(t *testing.T) {
	fake := &fakePages{pages: map[string]*Page[int]{"": {Items: seq(0, 5)}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items, err := NewFetcher(fake.fetch, DefaultConfig()).FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll() error = %v, want nil on cancellation", err)
	}
	if len(items) != 0 {
		t.Errorf("len(items) = %d, want 0", len(items))
	}
	if len(fake.requests) != 0 {
		t.Errorf("requests = %d, want 0", len(fake.requests))
	}
}

func TestEach_CancelBetweenPages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := &fakePages{pages: map[string]*Page[int]{
		"":   {Items: seq(0, 3), NextCursor: "p2"},
		"p2": {Items: seq(3, 3)},
	}}

	var got []int
	err := NewFetcher(fake.fetch, DefaultConfig()).Each(ctx, func(item int) error {
		got = append(got, item)
		if item == 2 {
			cancel()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Each() error = %v", err)
	}
	if !reflect.DeepEqual(got, seq(0, 3)) {
		t.Errorf("items = %v, want first page only", got)
	}
	if len(fake.requests) != 1 {
		t.Errorf("requests = %d, want 1", len(fake.requests))
	}
}

func TestEach_RequestFailingFromCancellationIsCleanStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	fetch := func(ctx context.Context, req PageRequest) (*Page[int], error) {
		cancel()
		return nil, fmt.Errorf("request failed: %w", ctx.Err())
	}

	if err := NewFetcher(fetch, DefaultConfig()).Each(ctx, func(int) error { return nil }); err != nil {
		t.Errorf("Each() error = %v, want nil", err)
	}
}

func TestEach_CallbackErrorStops(t *testing.T) {
	stop := errors.New("stop")
	fake := &fakePages{pages: map[string]*Page[int]{
		"":   {Items: seq(0, 3), NextCursor: "p2"},
		"p2": {Items: seq(3, 3)},
	}}

	calls := 0
	err := NewFetcher(fake.fetch, DefaultConfig()).Each(context.Background(), func(item int) error {
		calls++
		if item == 1 {
			return stop
		}
		return nil
	})
	if err != stop {
		t.Errorf("Each() error = %v, want stop", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if len(fake.requests) != 1 {
		t.Errorf("requests = %d, want 1", len(fake.requests))
	}
}

func TestEach_MaxPages(t *testing.T) {
	endless := func(ctx context.Context, req PageRequest) (*Page[int], error) {
		return &Page[int]{Items: []int{1}, NextCursor: req.Cursor + "x"}, nil
	}

	items, err := NewFetcher(endless, Config{MaxPages: 3, Resource: "loop"}).FetchAll(context.Background())
	if !errors.Is(err, ErrTooManyPages) {
		t.Fatalf("error = %v, want ErrTooManyPages", err)
	}
	if items != nil {
		t.Errorf("items = %v, want nil", items)
	}
}

func TestNewFetcher_Defaults(t *testing.T) {
	f := NewFetcher(func(context.Context, PageRequest) (*Page[int], error) { return nil, nil }, Config{PageSize: -1})

	if f.config.PageSize != DefaultPageSize {
		t.Errorf("PageSize = %d, want %d", f.config.PageSize, DefaultPageSize)
	}
	if f.config.Resource != "unknown" {
		t.Errorf("Resource = %q, want unknown", f.config.Resource)
	}
}

func TestEach_NilPageEndsWalk(t *testing.T) {
	f := NewFetcher(func(context.Context, PageRequest) (*Page[int], error) { return nil, nil }, DefaultConfig())

	items, err := f.FetchAll(context.Background())
	if err != nil || len(items) != 0 {
		t.Errorf("FetchAll() = %v, %v; want empty, nil", items, err)
	}
}

func TestPagesFetchedMetric(t *testing.T) {
	fake := &fakePages{pages: map[string]*Page[int]{
		"":  {Items: seq(0, 1), NextCursor: "b"},
		"b": {Items: seq(1, 1)},
	}}

	before := promtest.ToFloat64(pagesFetchedTotal.WithLabelValues("metric-test"))
	if _, err := NewFetcher(fake.fetch, Config{Resource: "metric-test"}).FetchAll(context.Background()); err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	after := promtest.ToFloat64(pagesFetchedTotal.WithLabelValues("metric-test"))

	if after-before != 2 {
		t.Errorf("pages metric delta = %v, want 2", after-before)
	}
}
