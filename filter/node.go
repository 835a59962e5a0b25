package filter

import (
	"context"

	"go.uber.org/zap"

	"github.com/rushteam/targetdb/core"
	"github.com/rushteam/targetdb/pipeline"
	"github.com/rushteam/targetdb/pkg/utils"
)

// FilterNode 是候选清单过滤 Node，可以组合多个过滤器。
// 任何一个过滤器返回 true，该靶点即被移出清单；失败的 Item 不进入清单。
// 被移除的 Item 仍保留在编排器手中，只是不再出现在本 Node 的输出里。
type FilterNode struct {
	Filters []Filter
	Logger  *zap.Logger
}

func (n *FilterNode) Name() string {
	return "filter.node"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RunContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	out := make([]*core.Item, 0, len(items))
	for _, item := range items {
		if item == nil || item.Failed() {
			continue
		}

		shouldFilter := false
		filterReason := ""

		for _, f := range n.Filters {
			ok, err := f.ShouldFilter(ctx, rctx, item)
			if err != nil {
				// 过滤器错误时记录但不中断流程
				n.logger().Warn("filter failed",
					zap.String("filter", f.Name()),
					zap.String("target_id", item.ID),
					zap.Error(err),
				)
				continue
			}
			if ok {
				shouldFilter = true
				filterReason = f.Name()
				break
			}
		}

		if shouldFilter {
			item.PutLabel("filtered", utils.Label{
				Value:  "true",
				Source: filterReason,
			})
			continue
		}

		item.PutLabel("shortlist", utils.Label{Value: "true", Source: "filter"})
		out = append(out, item)
	}

	return out, nil
}

func (n *FilterNode) logger() *zap.Logger {
	if n.Logger == nil {
		return zap.NewNop()
	}
	return n.Logger
}
