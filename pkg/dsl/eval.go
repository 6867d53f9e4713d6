// Package dsl 是基于 CEL (Common Expression Language) 的规则表达式解释器，
// 用于在 Pipeline 中按配置过滤候选商品。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/shoprec/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.DynType),
			cel.Variable("label", cel.DynType),
			cel.Variable("rctx", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Program 是编译后的表达式，可以被多个 goroutine 并发执行。
//
// 表达式语法（CEL 标准语法）：
//   - 基础：label.recall_source == "content"
//   - 数值：item.score > 0.7 / item.meta.popularity >= 10
//   - 类目：item.meta.category == "electronics"
//   - 逻辑：label.recall_source.contains("cf") && item.score > 1.0
//   - 存在性：has(item.meta.category)
//   - 用户：rctx.purchase_count > 3
//
// label.xxx 访问不存在的 key 会报错，先用 "xxx" in label 判断。
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式。
func Compile(expr string) (*Program, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

// String 返回原始表达式。
func (p *Program) String() string {
	return p.expr
}

// Match 对单个商品求值，表达式必须返回布尔值。
func (p *Program) Match(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	out, _, err := p.prg.Eval(buildInput(item, rctx))
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", p.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression %q must return boolean, got %T", p.expr, out.Value())
	}
	return result, nil
}

// Eval 是单次求值的便捷封装：编译并执行表达式。
// 高频调用应使用 Compile 得到的 Program 复用编译结果。
type Eval struct {
	item *core.Item
	rctx *core.RecommendContext
}

// NewEval 创建一个绑定了商品与上下文的解释器。
func NewEval(item *core.Item, rctx *core.RecommendContext) *Eval {
	return &Eval{item: item, rctx: rctx}
}

// Evaluate 解析并执行表达式，空表达式恒为 true。
func (e *Eval) Evaluate(expr string) (bool, error) {
	if expr == "" {
		return true, nil
	}
	p, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return p.Match(e.item, e.rctx)
}

func buildInput(item *core.Item, rctx *core.RecommendContext) map[string]any {
	labels := make(map[string]any)
	labelDetail := make(map[string]any)
	itemMap := map[string]any{}
	if item != nil {
		for k, v := range item.Labels {
			labels[k] = v.Value
			labelDetail[k] = map[string]any{"value": v.Value, "source": v.Source}
		}
		meta := item.Meta
		if meta == nil {
			meta = map[string]any{}
		}
		itemMap = map[string]any{
			"id":     item.ID,
			"score":  item.Score,
			"meta":   meta,
			"labels": labelDetail,
		}
	}

	rctxMap := map[string]any{}
	if rctx != nil {
		params := rctx.Params
		if params == nil {
			params = map[string]any{}
		}
		rctxMap = map[string]any{
			"user_id":        rctx.UserID,
			"scene":          rctx.Scene,
			"params":         params,
			"purchase_count": int64(len(rctx.Purchases)),
		}
	}

	return map[string]any{
		"item":  itemMap,
		"label": labels,
		"rctx":  rctxMap,
	}
}
