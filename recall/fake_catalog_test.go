package recall

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rushteam/shoprec/core"
)

// fakeCatalog 是内存版 core.CatalogService，记录调用次数。
type fakeCatalog struct {
	mu sync.Mutex

	purchases    map[string][]core.Purchase
	products     []core.Product
	popular      []core.Product
	interactions map[string]map[string]float64

	productsErr error
	buildDelay  time.Duration

	purchaseCalls  int32
	categoryCalls  int32
	productsCalls  int32
	popularCalls   int32
	lastPopularArg int
}

func product(id, name, desc, catID, catName string) core.Product {
	return core.Product{ID: id, Name: name, Description: desc, Category: core.Category{ID: catID, Name: catName}}
}

func (f *fakeCatalog) GetPurchases(_ context.Context, userID string) ([]core.Purchase, error) {
	atomic.AddInt32(&f.purchaseCalls, 1)
	return append([]core.Purchase{}, f.purchases[userID]...), nil
}

func (f *fakeCatalog) GetProductsByCategory(_ context.Context, categoryIDs []string) ([]core.Product, error) {
	atomic.AddInt32(&f.categoryCalls, 1)
	want := make(map[string]bool, len(categoryIDs))
	for _, c := range categoryIDs {
		want[c] = true
	}
	out := []core.Product{}
	for _, p := range f.products {
		if want[p.Category.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) GetProductsBatch(_ context.Context, ids []string) ([]core.Product, error) {
	byID := make(map[string]core.Product, len(f.products))
	for _, p := range f.products {
		byID[p.ID] = p
	}
	out := []core.Product{}
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) GetProducts(_ context.Context, limit int) ([]core.Product, error) {
	atomic.AddInt32(&f.productsCalls, 1)
	if f.buildDelay > 0 {
		time.Sleep(f.buildDelay)
	}
	f.mu.Lock()
	err := f.productsErr
	f.mu.Unlock()
	if err != nil {
		return []core.Product{}, err
	}
	out := append([]core.Product{}, f.products...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCatalog) GetPopularProducts(_ context.Context, limit int) ([]core.Product, error) {
	atomic.AddInt32(&f.popularCalls, 1)
	f.mu.Lock()
	f.lastPopularArg = limit
	f.mu.Unlock()
	out := append([]core.Product{}, f.popular...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCatalog) GetInteractions(context.Context) (map[string]map[string]float64, error) {
	return f.interactions, nil
}

func (f *fakeCatalog) setProductsErr(err error) {
	f.mu.Lock()
	f.productsErr = err
	f.mu.Unlock()
}
