package dsl

import (
	"testing"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/utils"
)

func TestEval_Evaluate(t *testing.T) {
	item := core.NewItem("P2")
	item.Score = 1.5
	item.Meta["category"] = "electronics"
	item.Meta["popularity"] = 12.0
	item.PutLabel("recall_source", utils.Label{Value: "cf", Source: "recall"})

	rctx := &core.RecommendContext{
		UserID:    "u1",
		Purchases: []core.Purchase{{ProductID: "P1", CategoryID: "C1"}},
	}

	tests := []struct {
		expr    string
		want    bool
		wantErr bool
	}{
		{expr: "", want: true},
		{expr: `item.score > 1.0`, want: true},
		{expr: `item.meta.category == "electronics"`, want: true},
		{expr: `item.meta.popularity >= 20.0`, want: false},
		{expr: `label.recall_source == "cf" && item.id == "P2"`, want: true},
		{expr: `"content" in label`, want: false},
		{expr: `rctx.purchase_count == 1`, want: true},
		{expr: `rctx.user_id`, wantErr: true},
		{expr: `item.score >`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := NewEval(item, rctx).Evaluate(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Evaluate(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestProgram_ReusedAcrossItems(t *testing.T) {
	p, err := Compile(`item.meta.category == "books"`)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	books := core.NewItem("B1")
	books.Meta["category"] = "books"
	phone := core.NewItem("P1")
	phone.Meta["category"] = "electronics"

	if ok, err := p.Match(books, nil); err != nil || !ok {
		t.Errorf("Match(books) = %v, %v", ok, err)
	}
	if ok, err := p.Match(phone, nil); err != nil || ok {
		t.Errorf("Match(phone) = %v, %v", ok, err)
	}
}
