package recall

import (
	"context"
	"math"
	"testing"

	"github.com/rushteam/shoprec/core"
)

func TestUserBasedCF_CategoryPseudoUser(t *testing.T) {
	catalog := &fakeCatalog{
		products: []core.Product{
			product("P1", "Phone", "", "C1", "electronics"),
			product("P2", "Charger", "", "C1", "electronics"),
			product("P3", "Cable", "", "C1", "electronics"),
			product("B1", "Novel", "", "C2", "books"),
		},
	}
	cf := &UserBasedCF{Catalog: catalog, TopKItems: 2, TopKSimilarUsers: 2}
	rctx := &core.RecommendContext{UserID: "u1"}
	rctx.SetPurchases([]core.Purchase{{ProductID: "P1", CategoryID: "C1"}})

	items, err := cf.Recall(context.Background(), rctx)
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Recall() returned %d items, want 2", len(items))
	}
	want := 1 / math.Sqrt(3)
	for i, id := range []string{"P2", "P3"} {
		if items[i].ID != id {
			t.Errorf("items[%d].ID = %q, want %q", i, items[i].ID, id)
		}
		if math.Abs(items[i].Score-want) > 1e-9 {
			t.Errorf("items[%d].Score = %v, want %v", i, items[i].Score, want)
		}
	}
	for _, it := range items {
		if it.ID == "P1" {
			t.Error("purchased product P1 recommended")
		}
	}
	if n := catalog.purchaseCalls; n != 0 {
		t.Errorf("GetPurchases called %d times, want 0 (purchases come from context)", n)
	}
}

func TestUserBasedCF_NoPurchases(t *testing.T) {
	catalog := &fakeCatalog{}
	cf := &UserBasedCF{Catalog: catalog}

	items, err := cf.Recall(context.Background(), &core.RecommendContext{UserID: "new-user"})
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Recall() = %d items, want 0", len(items))
	}
	if catalog.purchaseCalls != 1 {
		t.Errorf("GetPurchases called %d times, want 1", catalog.purchaseCalls)
	}
	if catalog.categoryCalls != 0 {
		t.Errorf("GetProductsByCategory called %d times, want 0", catalog.categoryCalls)
	}
}

func TestUserBasedCF_Community(t *testing.T) {
	catalog := &fakeCatalog{
		products: []core.Product{product("P1", "Phone", "", "C1", "electronics")},
		interactions: map[string]map[string]float64{
			"u1": {"P1": 1},
			"u2": {"P1": 1, "P4": 2},
			"u3": {"B9": 1},
		},
	}
	cf := &UserBasedCF{Catalog: catalog, TopKItems: 5, TopKSimilarUsers: 5, IncludeCommunity: true}
	rctx := &core.RecommendContext{UserID: "u1"}
	rctx.SetPurchases([]core.Purchase{{ProductID: "P1", CategoryID: "C1"}})

	items, err := cf.Recall(context.Background(), rctx)
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(items) == 0 || items[0].ID != "P4" {
		t.Fatalf("Recall() = %v, want P4 first", ids(items))
	}
	// u2 与 u1 的相似度为 1/sqrt(5)，P4 权重为 2
	if want := 2 / math.Sqrt(5); math.Abs(items[0].Score-want) > 1e-9 {
		t.Errorf("P4 score = %v, want %v", items[0].Score, want)
	}
}

func TestRankNeighbors_SkipsTarget(t *testing.T) {
	tests := []struct {
		name   string
		row    []float64
		target int
		k      int
		want   []int
	}{
		{name: "target first", row: []float64{1, 0.5, 0.9}, target: 0, k: 2, want: []int{2, 1}},
		{name: "tie with self", row: []float64{0.3, 1, 1}, target: 1, k: 1, want: []int{2}},
		{name: "fewer rows than k", row: []float64{1, 0.2}, target: 0, k: 5, want: []int{1}},
		{name: "only target", row: []float64{1}, target: 0, k: 3, want: []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rankNeighbors(tt.row, tt.target, tt.k)
			if len(got) != len(tt.want) {
				t.Fatalf("rankNeighbors() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] == tt.target {
					t.Errorf("target %d returned as its own neighbor", tt.target)
				}
				if got[i] != tt.want[i] {
					t.Errorf("rankNeighbors()[%d] = %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDistinctCategories(t *testing.T) {
	got := distinctCategories([]core.Purchase{
		{ProductID: "P1", CategoryID: "C2"},
		{ProductID: "P2", CategoryID: ""},
		{ProductID: "P3", CategoryID: "C1"},
		{ProductID: "P4", CategoryID: "C2"},
	})
	if len(got) != 2 || got[0] != "C2" || got[1] != "C1" {
		t.Errorf("distinctCategories() = %v, want [C2 C1]", got)
	}
}

func ids(items []*core.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}
