package recall

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rushteam/shoprec/core"
)

func threeProducts() []core.Product {
	return []core.Product{
		product("A", "Running shoes", "Lightweight running shoes for road", "F", "footwear"),
		product("B", "Trail shoes", "Running shoes with grip for trail", "F", "footwear"),
		product("C", "Coffee mug", "Ceramic mug for hot drinks", "K", "kitchen"),
	}
}

func TestContentIndex_Similar(t *testing.T) {
	idx := NewContentIndex(&fakeCatalog{products: threeProducts()})

	got, err := idx.Similar(context.Background(), "A", 2)
	if err != nil {
		t.Fatalf("Similar() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Similar() returned %d, want 2", len(got))
	}
	if got[0].Product.ID != "B" || got[1].Product.ID != "C" {
		t.Errorf("Similar() order = [%s %s], want [B C]", got[0].Product.ID, got[1].Product.ID)
	}
	if !(got[0].Similarity > got[1].Similarity) {
		t.Errorf("similarities not descending: %v, %v", got[0].Similarity, got[1].Similarity)
	}
	for _, n := range got {
		if n.Product.ID == "A" {
			t.Error("reference product returned")
		}
	}
	if idx.State() != IndexReady || idx.Size() != 3 {
		t.Errorf("State() = %v, Size() = %d", idx.State(), idx.Size())
	}
}

func TestContentIndex_UnknownProduct(t *testing.T) {
	idx := NewContentIndex(&fakeCatalog{products: threeProducts()})
	got, err := idx.Recommend(context.Background(), "missing", 5)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Recommend() = %d products, want 0", len(got))
	}
}

func TestContentIndex_TiesKeepCatalogOrder(t *testing.T) {
	catalog := &fakeCatalog{products: []core.Product{
		product("X", "lamp", "", "", ""),
		product("Y", "table", "", "", ""),
		product("Z", "chair", "", "", ""),
		product("W", "sofa", "", "", ""),
	}}
	idx := NewContentIndex(catalog)
	got, err := idx.Recommend(context.Background(), "Z", 3)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	want := []string{"X", "Y", "W"}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("Recommend()[%d] = %s, want %s", i, got[i].ID, want[i])
		}
	}
}

func TestContentIndex_SingleBuildUnderConcurrency(t *testing.T) {
	catalog := &fakeCatalog{products: threeProducts(), buildDelay: 50 * time.Millisecond}
	idx := NewContentIndex(catalog)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := idx.Similar(context.Background(), "A", 2); err != nil {
				t.Errorf("Similar() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&catalog.productsCalls); n != 1 {
		t.Errorf("catalog fetched %d times, want 1", n)
	}
}

func TestContentIndex_FailedBuildRetries(t *testing.T) {
	catalog := &fakeCatalog{products: threeProducts()}
	catalog.setProductsErr(errors.New("catalog down"))
	idx := NewContentIndex(catalog)

	if _, err := idx.Similar(context.Background(), "A", 2); err == nil {
		t.Fatal("Similar() error = nil, want build error")
	}
	if idx.State() != IndexUninitialized {
		t.Errorf("State() after failure = %v, want uninitialized", idx.State())
	}

	catalog.setProductsErr(nil)
	got, err := idx.Similar(context.Background(), "A", 2)
	if err != nil || len(got) != 2 {
		t.Fatalf("Similar() after recovery = %d, %v", len(got), err)
	}
	if n := atomic.LoadInt32(&catalog.productsCalls); n != 2 {
		t.Errorf("catalog fetched %d times, want 2", n)
	}
}

func TestContentIndex_EmptyCatalog(t *testing.T) {
	idx := NewContentIndex(&fakeCatalog{})
	if _, err := idx.Similar(context.Background(), "A", 2); !errors.Is(err, ErrEmptyCatalog) {
		t.Errorf("Similar() error = %v, want ErrEmptyCatalog", err)
	}
	if idx.State() != IndexUninitialized {
		t.Errorf("State() = %v, want uninitialized", idx.State())
	}
}

func TestContentIndex_InvalidateAndMaxAge(t *testing.T) {
	catalog := &fakeCatalog{products: threeProducts()}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	idx := NewContentIndex(catalog, WithMaxAge(time.Hour))
	idx.now = func() time.Time { return now }

	ctx := context.Background()
	if err := idx.Warmup(ctx); err != nil {
		t.Fatalf("Warmup() error = %v", err)
	}
	_, _ = idx.Similar(ctx, "A", 1)
	if n := atomic.LoadInt32(&catalog.productsCalls); n != 1 {
		t.Fatalf("catalog fetched %d times, want 1", n)
	}

	now = now.Add(2 * time.Hour)
	_, _ = idx.Similar(ctx, "A", 1)
	if n := atomic.LoadInt32(&catalog.productsCalls); n != 2 {
		t.Errorf("catalog fetched %d times after expiry, want 2", n)
	}

	idx.Invalidate()
	if idx.State() != IndexUninitialized || idx.Size() != 0 {
		t.Errorf("after Invalidate: State() = %v, Size() = %d", idx.State(), idx.Size())
	}
	_, _ = idx.Similar(ctx, "A", 1)
	if n := atomic.LoadInt32(&catalog.productsCalls); n != 3 {
		t.Errorf("catalog fetched %d times after Invalidate, want 3", n)
	}
}

func TestContentRecall_SeedsFromLatestPurchase(t *testing.T) {
	idx := NewContentIndex(&fakeCatalog{products: threeProducts()})
	r := &ContentRecall{Index: idx, TopK: 2}
	rctx := &core.RecommendContext{UserID: "u1"}
	rctx.SetPurchases([]core.Purchase{
		{ProductID: "C", CategoryID: "K"},
		{ProductID: "A", CategoryID: "F"},
	})

	items, err := r.Recall(context.Background(), rctx)
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(items) != 2 || items[0].ID != "B" {
		t.Fatalf("Recall() = %v, want B first", ids(items))
	}
	if items[0].Product == nil || items[0].Labels["content_seed"].Value != "A" {
		t.Errorf("items[0] missing product or seed label: %+v", items[0])
	}
}

func TestContentIndex_CallerTimeoutDoesNotWaitForBuild(t *testing.T) {
	catalog := &fakeCatalog{products: threeProducts(), buildDelay: 300 * time.Millisecond}
	idx := NewContentIndex(catalog)
	fanout := &Fanout{
		Sources: []Source{&ContentRecall{Index: idx, TopK: 2}},
		Timeout: 50 * time.Millisecond,
	}
	newCtx := func() *core.RecommendContext {
		rctx := &core.RecommendContext{UserID: "u1"}
		rctx.SetPurchases([]core.Purchase{{ProductID: "A", CategoryID: "F"}})
		return rctx
	}

	start := time.Now()
	items, err := fanout.Process(context.Background(), newCtx(), nil)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if elapsed > 200*time.Millisecond {
		t.Errorf("Process() took %v, want it bounded by the 50ms recall timeout", elapsed)
	}
	if len(items) != 0 {
		t.Errorf("Process() = %v, want no items while the index is building", ids(items))
	}

	// 构建在后台完成，后续请求直接复用
	deadline := time.Now().Add(2 * time.Second)
	for idx.State() != IndexReady && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if idx.State() != IndexReady {
		t.Fatalf("State() = %v, want ready after the detached build", idx.State())
	}
	items, err = fanout.Process(context.Background(), newCtx(), nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(items) != 2 || items[0].ID != "B" {
		t.Errorf("Process() = %v, want [B C]", ids(items))
	}
	if calls := atomic.LoadInt32(&catalog.productsCalls); calls != 1 {
		t.Errorf("GetProducts called %d times, want 1", calls)
	}
}

func TestContentIndex_CancelledCallerGetsContextError(t *testing.T) {
	idx := NewContentIndex(&fakeCatalog{products: threeProducts(), buildDelay: 200 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := idx.Similar(ctx, "A", 2); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Similar() error = %v, want context.DeadlineExceeded", err)
	}
}
