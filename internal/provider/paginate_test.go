package provider

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

// fakePages builds a PageFunc over fixed page sizes; page indexes are
// 1-based with 0 treated as the first page, mirroring the API clients.
func fakePages(sizes []int, calls *int) PageFunc[int] {
	return func(ctx context.Context, page int) ([]int, int, error) {
		if calls != nil {
			*calls++
		}
		if page == 0 {
			page = 1
		}
		start := 0
		for i := 0; i < page-1; i++ {
			start += sizes[i]
		}
		items := make([]int, sizes[page-1])
		for i := range items {
			items[i] = start + i + 1
		}
		next := page + 1
		if page == len(sizes) {
			next = 0
		}
		return items, next, nil
	}
}

func TestWalkPages_YieldsAllItemsInPageOrder(t *testing.T) {
	calls := 0
	fetch := fakePages([]int{10, 10, 4}, &calls)

	var got []int
	err := walkPages(context.Background(), zap.NewNop(), fetch, func(v int) error {
		got = append(got, v)
		return nil
	})
	if err != nil {
		t.Fatalf("walkPages returned error: %v", err)
	}

	if len(got) != 24 {
		t.Fatalf("yielded %d items, want 24", len(got))
	}
	for i, v := range got {
		if v != i+1 {
			t.Fatalf("item %d = %d, want %d (page order broken)", i, v, i+1)
		}
	}
	if calls != 3 {
		t.Fatalf("fetch called %d times, want 3", calls)
	}
}

func TestWalkPages_StopsOnFetchError(t *testing.T) {
	boom := errors.New("boom")
	fetch := func(ctx context.Context, page int) ([]int, int, error) {
		if page >= 2 {
			return nil, 0, boom
		}
		return []int{1, 2, 3}, 2, nil
	}

	var got []int
	err := walkPages(context.Background(), zap.NewNop(), fetch, func(v int) error {
		got = append(got, v)
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("partial page not preserved: got %d items, want 3", len(got))
	}
}

func TestWalkPages_StopsOnVisitError(t *testing.T) {
	fetch := fakePages([]int{10, 10}, nil)
	boom := errors.New("visit failed")

	var got []int
	err := walkPages(context.Background(), zap.NewNop(), fetch, func(v int) error {
		if v == 5 {
			return boom
		}
		got = append(got, v)
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected visit error, got %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("visited %d items before error, want 4", len(got))
	}
}

func TestWalkPages_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	fetch := func(fctx context.Context, page int) ([]int, int, error) {
		// Cancel once the first page is out; the walk must stop before
		// requesting the second.
		cancel()
		return []int{1}, page + 2, nil
	}

	var got []int
	err := walkPages(ctx, zap.NewNop(), fetch, func(v int) error {
		got = append(got, v)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("visited %d items, want 1 (the already-fetched page)", len(got))
	}
}
