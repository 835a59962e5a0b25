package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/targetdb/core"
)

// Observer 在每个 Node 执行完成后回调（用于阶段耗时打点）。
type Observer func(node Node, elapsed time.Duration, err error)

// Pipeline 把单个靶点的处理拆成可组合的 Node 链：
// extract -> describe -> classify -> (filter / postprocess)。
type Pipeline struct {
	Nodes    []Node
	Observer Observer
}

func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RunContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		next, err := node.Process(ctx, rctx, cur)
		if p.Observer != nil {
			p.Observer(node, time.Since(start), err)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node.Name(), err)
		}
		cur = next
	}
	return cur, nil
}

// Kinds 返回各 Node 的阶段类型（按顺序）
func (p *Pipeline) Kinds() []Kind {
	out := make([]Kind, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		out = append(out, n.Kind())
	}
	return out
}
