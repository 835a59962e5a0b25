package rank

import (
	"context"

	"github.com/rushteam/targetdb/core"
	"github.com/rushteam/targetdb/pipeline"
	"github.com/rushteam/targetdb/pkg/utils"
)

// TractabilityNode 使用成药性分类器给 Item 打分：
// - 写入 Score（类别 1 概率）、Class 与 InTrainingSet
// - 写入 labels：rank_model / tractable
//
// 一次 Process 调用对全部存活 Item 做一次批量预测。特征列与模型不一致时
// 返回 SCHEMA_MISMATCH，由编排器终止整批，不降级为单靶点失败。
type TractabilityNode struct {
	Model     core.TractabilityModel
	ModelName string
}

func (n *TractabilityNode) Name() string        { return "rank.tractability" }
func (n *TractabilityNode) Kind() pipeline.Kind { return pipeline.KindClassify }

func (n *TractabilityNode) Process(
	_ context.Context,
	_ *core.RunContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Model == nil {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInternalError, "rank: model not configured")
	}

	live := make([]*core.Item, 0, len(items))
	rows := make([]*core.Vector, 0, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it == nil || it.Failed() {
			continue
		}
		if it.Input == nil {
			it.Err = core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, "rank: item has no model input")
			continue
		}
		live = append(live, it)
		rows = append(rows, it.Input)
		ids = append(ids, it.ID)
	}
	if len(live) == 0 {
		return items, nil
	}

	probs, err := n.Model.PredictProba(rows)
	if err != nil {
		return nil, err
	}
	members := n.Model.InTrainingSet(ids)

	name := n.ModelName
	if name == "" {
		name = "random_forest"
	}
	for i, it := range live {
		it.Score = probs[i][1]
		if probs[i][1] > probs[i][0] {
			it.Class = 1
		} else {
			it.Class = 0
		}
		it.InTrainingSet = members[i] == core.MembershipYes

		it.PutLabel("rank_model", utils.Label{Value: name, Source: "rank"})
		it.PutLabel("tractable", utils.Label{Value: core.TractabilityLabel(it.Score * 100), Source: "rank"})
	}
	return items, nil
}
