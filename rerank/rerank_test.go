package rerank

import (
	"context"
	"testing"

	"github.com/rushteam/shoprec/core"
)

func catItems(pairs ...string) []*core.Item {
	var out []*core.Item
	for i := 0; i < len(pairs); i += 2 {
		it := core.NewItem(pairs[i])
		if pairs[i+1] != "" {
			it.Meta["category"] = pairs[i+1]
		}
		out = append(out, it)
	}
	return out
}

func TestTopNNode(t *testing.T) {
	in := catItems("A", "", "B", "", "C", "")
	tests := []struct {
		name string
		node *TopNNode
		rctx *core.RecommendContext
		want int
	}{
		{name: "explicit N", node: &TopNNode{N: 2}, want: 2},
		{name: "from top_n param", node: &TopNNode{}, rctx: &core.RecommendContext{Params: map[string]any{"top_n": 1}}, want: 1},
		{name: "no limit", node: &TopNNode{}, want: 3},
		{name: "N larger than items", node: &TopNNode{N: 10}, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.node.Process(context.Background(), tt.rctx, in)
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if len(out) != tt.want {
				t.Errorf("Process() = %d items, want %d", len(out), tt.want)
			}
		})
	}
}

func TestDiversity(t *testing.T) {
	in := catItems("A", "shoes", "B", "shoes", "C", "", "D", "mugs", "E", "shoes")

	out, _ := (&Diversity{}).Process(context.Background(), nil, in)
	want := []string{"A", "C", "D"}
	if len(out) != len(want) {
		t.Fatalf("Process() = %d items, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i].ID != want[i] {
			t.Errorf("out[%d] = %s, want %s", i, out[i].ID, want[i])
		}
	}

	out, _ = (&Diversity{MaxPerCategory: 2}).Process(context.Background(), nil, in)
	if len(out) != 4 {
		t.Errorf("MaxPerCategory=2: %d items, want 4", len(out))
	}
}
