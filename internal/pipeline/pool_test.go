package pipeline

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"
)

func TestMap_PositionalResults(t *testing.T) {
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	out := Map(context.Background(), items, 8, func(_ context.Context, n int) string {
		return strconv.Itoa(n * 2)
	})

	if len(out) != len(items) {
		t.Fatalf("expected %d outputs, got %d", len(items), len(out))
	}
	for i, s := range out {
		if want := strconv.Itoa(i * 2); s != want {
			t.Fatalf("output %d: expected %q, got %q", i, want, s)
		}
	}
}

func TestMap_SequentialAndParallelAgree(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f", "g"}
	fn := func(_ context.Context, s string) string { return s + s }

	seq := Map(context.Background(), items, 1, fn)
	par := Map(context.Background(), items, 4, fn)

	for i := range items {
		if seq[i] != par[i] {
			t.Fatalf("position %d: sequential %q vs parallel %q", i, seq[i], par[i])
		}
	}
}

func TestMap_EveryItemProcessedOnce(t *testing.T) {
	var calls int64
	items := make([]int, 50)
	Map(context.Background(), items, 16, func(_ context.Context, _ int) int {
		atomic.AddInt64(&calls, 1)
		return 0
	})
	if calls != 50 {
		t.Fatalf("expected 50 calls, got %d", calls)
	}
}

func TestMap_EmptyInput(t *testing.T) {
	out := Map(context.Background(), nil, 4, func(_ context.Context, n int) int { return n })
	if len(out) != 0 {
		t.Fatalf("expected empty output, got %v", out)
	}
}
