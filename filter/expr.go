package filter

import (
	"context"

	"github.com/rushteam/targetdb/core"
	"github.com/rushteam/targetdb/pkg/dsl"
)

// ExprFilter 按 CEL 表达式筛选候选清单：表达式为 true 的靶点保留。
//
// 示例：`item.probability >= 80.0 && !item.in_training_set`
type ExprFilter struct {
	expr *dsl.Expr
}

// NewExprFilter 编译表达式；表达式非法时立即返回错误。
func NewExprFilter(expr string) (*ExprFilter, error) {
	compiled, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{expr: compiled}, nil
}

func (f *ExprFilter) Name() string {
	return "filter.expr"
}

func (f *ExprFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RunContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	keep, err := f.expr.Match(item, rctx)
	if err != nil {
		return false, err
	}
	return !keep, nil
}
