package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/store"
)

func items(ids ...string) []*core.Item {
	out := make([]*core.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, core.NewItem(id))
	}
	return out
}

func itemIDs(items []*core.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPurchasedFilter(t *testing.T) {
	rctx := &core.RecommendContext{UserID: "u1"}
	rctx.SetPurchases([]core.Purchase{{ProductID: "P1"}, {ProductID: "P3"}})

	in := items("P1", "P2", "P3", "P4")
	// 解析后的商品 ID 与召回 ID 不同时也要过滤
	in[3].AttachProduct(&core.Product{ID: "P3"})

	node := &FilterNode{Filters: []Filter{&PurchasedFilter{}}}
	out, err := node.Process(context.Background(), rctx, in)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got := itemIDs(out); !equalIDs(got, []string{"P2"}) {
		t.Errorf("Process() = %v, want [P2]", got)
	}
	if lbl := in[0].Labels["filtered"]; lbl.Source != "filter.purchased" {
		t.Errorf("filtered label = %+v", lbl)
	}
}

func TestBlacklistAndUserBlock(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	defer mem.Close()
	adapter := NewStoreAdapter(mem)

	if err := adapter.SetList(ctx, "blacklist:products", []string{"P2"}); err != nil {
		t.Fatalf("SetList() error = %v", err)
	}
	_ = mem.Set(ctx, "user:block:u1", []byte(`["P3", 4]`))

	node := &FilterNode{Filters: []Filter{
		NewBlacklistFilter([]string{"P5"}, adapter, "blacklist:products"),
		NewUserBlockFilter(adapter, ""),
	}}

	rctx := &core.RecommendContext{UserID: "u1"}
	out, err := node.Process(ctx, rctx, items("P1", "P2", "P3", "4", "P5", "P6"))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got := itemIDs(out); !equalIDs(got, []string{"P1", "P6"}) {
		t.Errorf("Process() = %v, want [P1 P6]", got)
	}

	// 没有拉黑记录的用户只受黑名单影响
	out, _ = node.Process(ctx, &core.RecommendContext{UserID: "u2"}, items("P2", "P3"))
	if got := itemIDs(out); !equalIDs(got, []string{"P3"}) {
		t.Errorf("Process(u2) = %v, want [P3]", got)
	}
}

type brokenStore struct{}

func (brokenStore) GetBlacklist(context.Context, string) ([]string, error) {
	return nil, errors.New("redis down")
}

func (brokenStore) GetUserBlocks(context.Context, string, string) ([]string, error) {
	return nil, errors.New("redis down")
}

func TestFilters_StoreFailureKeepsItems(t *testing.T) {
	node := &FilterNode{Filters: []Filter{
		&BlacklistFilter{ItemIDs: []string{"P1"}, Store: brokenStore{}, Key: "bl"},
		&UserBlockFilter{Store: brokenStore{}},
	}}
	out, err := node.Process(context.Background(), &core.RecommendContext{UserID: "u1"}, items("P1", "P2"))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got := itemIDs(out); !equalIDs(got, []string{"P2"}) {
		t.Errorf("Process() = %v, want [P2] (static blacklist still applies)", got)
	}
}

func TestExprFilter(t *testing.T) {
	f, err := NewExprFilter(`item.meta.popularity < 1.0`, false)
	if err != nil {
		t.Fatalf("NewExprFilter() error = %v", err)
	}
	cold := core.NewProductItem(&core.Product{ID: "C", Popularity: 0})
	hot := core.NewProductItem(&core.Product{ID: "H", Popularity: 50})

	out, _ := (&FilterNode{Filters: []Filter{f}}).Process(context.Background(), nil, []*core.Item{cold, hot})
	if got := itemIDs(out); !equalIDs(got, []string{"H"}) {
		t.Errorf("Process() = %v, want [H]", got)
	}

	keep, _ := NewExprFilter(`item.meta.popularity < 1.0`, true)
	out, _ = (&FilterNode{Filters: []Filter{keep}}).Process(context.Background(), nil, []*core.Item{cold, hot})
	if got := itemIDs(out); !equalIDs(got, []string{"C"}) {
		t.Errorf("inverted Process() = %v, want [C]", got)
	}

	if _, err := NewExprFilter(`item.score >`, false); err == nil {
		t.Error("NewExprFilter(invalid) error = nil")
	}
}
