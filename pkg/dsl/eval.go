package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/targetdb/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once

	// programs 缓存已编译的表达式，key 为表达式文本
	programs sync.Map
)

// initCELEnv 初始化 CEL 环境，定义变量
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("item", cel.DynType),
		cel.Variable("label", cel.DynType),
		cel.Variable("rctx", cel.DynType),
		cel.CrossTypeNumericComparisons(true),
	)
}

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Expr 是编译好的布尔表达式，可被多个 worker 并发求值。
type Expr struct {
	src string
	prg cel.Program
}

// Compile 编译表达式（带缓存）。表达式必须返回 bool。
func Compile(expr string) (*Expr, error) {
	if cached, ok := programs.Load(expr); ok {
		return cached.(*Expr), nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression %q must return bool, got %s", expr, t)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	e := &Expr{src: expr, prg: prg}
	programs.Store(expr, e)
	return e, nil
}

// String 返回表达式原文
func (e *Expr) String() string { return e.src }

// Match 对单个靶点求值
func (e *Expr) Match(item *core.Item, rctx *core.RunContext) (bool, error) {
	out, _, err := e.prg.Eval(buildInput(item, rctx))
	if err != nil {
		// 访问不存在的 key 会报错，应使用 label.key != null 或 has() 检查
		return false, fmt.Errorf("eval error: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

// Eval 是针对单个 Item 的 DSL 解释器，使用 CEL (Common Expression Language) 实现。
//
// 可用变量：
//   - item.id / item.gene / item.score / item.probability / item.tractable
//   - item.class / item.in_training_set / item.failed
//   - item.components.<列名>（ScoreComponents 行）
//   - label.<key>（Label 的 Value）
//   - rctx.run_id / rctx.worker / rctx.params
//
// 示例：
//   - `item.probability >= 80.0 && !item.in_training_set`
//   - `item.components.pocket_count > 0.0 && label.tractable == "Tractable"`
//   - `item.gene.startsWith("KIN")`
type Eval struct {
	item *core.Item
	rctx *core.RunContext
}

// NewEval 创建一个新的 DSL 解释器
func NewEval(item *core.Item, rctx *core.RunContext) *Eval {
	return &Eval{item: item, rctx: rctx}
}

// Evaluate 编译（带缓存）并执行表达式，空表达式恒为 true。
func (e *Eval) Evaluate(expr string) (bool, error) {
	if expr == "" {
		return true, nil
	}
	compiled, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return compiled.Match(e.item, e.rctx)
}

// buildInput 构建 CEL 表达式的输入数据
func buildInput(it *core.Item, rctx *core.RunContext) map[string]interface{} {
	if it == nil {
		it = &core.Item{}
	}
	labels := make(map[string]interface{}, len(it.Labels))
	labelAccessor := make(map[string]interface{}, len(it.Labels))
	for k, v := range it.Labels {
		labels[k] = map[string]interface{}{
			"value":  v.Value,
			"source": v.Source,
		}
		labelAccessor[k] = v.Value
	}

	components := make(map[string]interface{})
	if it.Components != nil {
		for _, c := range it.Components.Columns {
			components[c] = it.Components.Values[c]
		}
	}

	meta := it.Meta
	if meta == nil {
		meta = map[string]any{}
	}

	pct := core.ProbabilityPct(it.Score)
	item := map[string]interface{}{
		"id":              it.ID,
		"gene":            it.GeneName,
		"score":           it.Score,
		"probability":     pct,
		"tractable":       it.Err == nil && core.TractabilityLabel(it.Score*100) == core.LabelTractable,
		"class":           it.Class,
		"in_training_set": it.InTrainingSet,
		"failed":          it.Err != nil,
		"components":      components,
		"meta":            meta,
		"labels":          labels,
	}

	ctx := map[string]interface{}{
		"run_id": "",
		"worker": 0,
		"params": map[string]interface{}{},
	}
	if rctx != nil {
		ctx["run_id"] = rctx.RunID
		ctx["worker"] = rctx.Worker
		if rctx.Params != nil {
			ctx["params"] = rctx.Params
		}
	}

	return map[string]interface{}{
		"item":  item,
		"label": labelAccessor,
		"rctx":  ctx,
	}
}
