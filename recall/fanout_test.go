package recall

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rushteam/shoprec/core"
)

type staticSource struct {
	name  string
	items func() []*core.Item
	err   error
	delay time.Duration
	panic bool
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Recall(ctx context.Context, _ *core.RecommendContext) ([]*core.Item, error) {
	if s.panic {
		panic("boom")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.items(), nil
}

func scored(pairs ...any) func() []*core.Item {
	return func() []*core.Item {
		var out []*core.Item
		for i := 0; i < len(pairs); i += 2 {
			it := core.NewItem(pairs[i].(string))
			it.Score = pairs[i+1].(float64)
			out = append(out, it)
		}
		return out
	}
}

func TestFanout_WeightedMerge(t *testing.T) {
	fanout := &Fanout{
		Sources: []Source{
			// 慢的召回源排在前面，结果仍按 Sources 顺序合并
			&staticSource{name: SourceCF, items: scored("P2", 0.5, "P3", 0.4), delay: 20 * time.Millisecond},
			&staticSource{name: SourceContent, items: scored("P3", 0.9, "P4", 0.1)},
		},
		MergeStrategy: &WeightedMergeStrategy{
			Weights: map[string]float64{SourceCF: 1.5, SourceContent: 1.0},
			Votes:   map[string]bool{SourceContent: true},
		},
	}

	items, err := fanout.Process(context.Background(), &core.RecommendContext{}, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	want := []struct {
		id    string
		score float64
	}{
		{"P2", 0.75},
		{"P3", 0.6 + 1.0},
		{"P4", 1.0},
	}
	if len(items) != len(want) {
		t.Fatalf("Process() = %v, want %d items", ids(items), len(want))
	}
	for i, w := range want {
		if items[i].ID != w.id || math.Abs(items[i].Score-w.score) > 1e-9 {
			t.Errorf("items[%d] = %s/%v, want %s/%v", i, items[i].ID, items[i].Score, w.id, w.score)
		}
	}
	if src := items[1].Labels["recall_source"].Value; src != SourceCF+"|"+SourceContent {
		t.Errorf("P3 recall_source = %q", src)
	}
}

func TestFanout_FailingSourcesAreIsolated(t *testing.T) {
	fanout := &Fanout{
		Sources: []Source{
			&staticSource{name: "broken", err: errors.New("upstream down")},
			&staticSource{name: "panicky", panic: true},
			&staticSource{name: "slow", items: scored("S1", 1.0), delay: time.Second},
			&staticSource{name: "ok", items: scored("P1", 1.0, "P1", 0.5)},
		},
		Timeout: 20 * time.Millisecond,
	}

	items, err := fanout.Process(context.Background(), &core.RecommendContext{}, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got := ids(items); len(got) != 1 || got[0] != "P1" {
		t.Errorf("Process() = %v, want [P1]", got)
	}
}

func TestFanout_StandaloneSourcesShareOnePurchaseLoad(t *testing.T) {
	catalog := &fakeCatalog{
		products:  threeProducts(),
		purchases: map[string][]core.Purchase{"u1": {{ProductID: "A", CategoryID: "F"}}},
	}
	idx := NewContentIndex(catalog)
	fanout := &Fanout{
		Sources: []Source{
			&UserBasedCF{Catalog: catalog, TopKItems: 2, TopKSimilarUsers: 2},
			&ContentRecall{Index: idx, Catalog: catalog, TopK: 2},
		},
	}

	const requests = 50
	var wg sync.WaitGroup
	errs := make(chan error, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Purchases 未预先设置：召回源需要自行拉取
			rctx := &core.RecommendContext{UserID: "u1"}
			items, err := fanout.Process(context.Background(), rctx, nil)
			if err != nil {
				errs <- err
				return
			}
			if len(items) == 0 || items[0].ID != "B" {
				errs <- fmt.Errorf("Process() = %v, want B first", ids(items))
				return
			}
			if rctx.HasPurchased("B") || !rctx.HasPurchased("A") {
				errs <- errors.New("purchase set not loaded")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if calls := atomic.LoadInt32(&catalog.purchaseCalls); calls != requests {
		t.Errorf("GetPurchases called %d times, want %d (once per request)", calls, requests)
	}
}

func TestFirstMergeStrategy(t *testing.T) {
	results := []SourceResult{
		{Source: "a", Items: scored("X", 1.0, "Y", 2.0)()},
		{Source: "b", Items: scored("Y", 3.0, "Z", 4.0)()},
	}

	first := (&FirstMergeStrategy{}).Merge(results)
	if got := ids(first); len(got) != 3 || got[1] != "Y" || first[1].Score != 2.0 {
		t.Errorf("First = %v, want Y from source a", got)
	}
}
