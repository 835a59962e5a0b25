package model

import (
	"context"

	"github.com/rushteam/targetdb/core"
	"github.com/rushteam/targetdb/descriptor"
)

// 类别
const (
	ClassNotDruggable = 0
	ClassDruggable    = 1
)

// Classifier 是成药性随机森林分类器。
// 训练（或加载）一次后只读：所有 worker 共享同一个实例。
type Classifier struct {
	forest  *Forest
	schema  descriptor.Schema
	params  Params
	members map[string]struct{}
}

var _ core.TractabilityModel = (*Classifier)(nil)

// Train 在训练快照上拟合分类器。特征列即模型契约；
// 训练集本身保留为成员查询的索引。
func Train(ctx context.Context, ts *TrainingSet, params Params) (*Classifier, error) {
	if ts == nil || ts.Len() == 0 {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, "model: empty training set")
	}
	if len(ts.Columns) == 0 {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, "model: training set has no feature columns")
	}
	forest, err := fitForest(ctx, ts.X, ts.Y, params)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleModel, core.ErrorCodeInternalError, err, "model: train")
	}
	members := make(map[string]struct{}, ts.Len())
	for _, id := range ts.IDs {
		members[id] = struct{}{}
	}
	return &Classifier{
		forest:  forest,
		schema:  descriptor.NewSchema(descriptor.SchemaVersion, ts.Columns),
		params:  params,
		members: members,
	}, nil
}

func (c *Classifier) Name() string { return "random_forest" }

// FeatureColumns 返回冻结的训练特征列
func (c *Classifier) FeatureColumns() []string {
	return append([]string(nil), c.schema.Columns...)
}

// Schema 返回模型的 ModelInput 契约
func (c *Classifier) Schema() descriptor.Schema { return c.schema }

// Params 返回训练超参数
func (c *Classifier) Params() Params { return c.params }

// CheckSchema 在启动时校验描述符契约与模型特征列一致，不一致为整批致命错误。
func (c *Classifier) CheckSchema(s descriptor.Schema) error {
	if err := c.schema.ConformColumns(s.Columns); err != nil {
		return core.WrapDomainError(core.ModuleModel, core.ErrorCodeSchemaMismatch, err,
			"model: descriptor schema %s does not match trained features", s.Version)
	}
	return nil
}

// PredictProba 返回每行的 [p_class0, p_class1]；任何一行与训练特征列不一致即返回 SCHEMA_MISMATCH。
func (c *Classifier) PredictProba(rows []*core.Vector) ([][2]float64, error) {
	out := make([][2]float64, len(rows))
	for i, row := range rows {
		if err := c.schema.Conform(row); err != nil {
			id := ""
			if row != nil {
				id = row.TargetID
			}
			return nil, core.WrapDomainError(core.ModuleModel, core.ErrorCodeSchemaMismatch, err, "model: row %d (%s)", i, id)
		}
		out[i] = c.forest.PredictProba(row.Values)
	}
	return out, nil
}

// Predict 返回每行的预测类别（概率更高的类别，平局取 0）。
func (c *Classifier) Predict(rows []*core.Vector) ([]int, error) {
	probs, err := c.PredictProba(rows)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(probs))
	for i, p := range probs {
		if p[1] > p[0] {
			out[i] = ClassDruggable
		}
	}
	return out, nil
}

// InTrainingSet 按输入顺序返回 "Yes" / "No"，与模型的判定边界无关。
func (c *Classifier) InTrainingSet(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if _, ok := c.members[id]; ok {
			out[i] = core.MembershipYes
		} else {
			out[i] = core.MembershipNo
		}
	}
	return out
}
