package descriptor

import (
	"context"

	"github.com/rushteam/targetdb/core"
	"github.com/rushteam/targetdb/pipeline"
)

// Builder 把一个靶点的特征表聚合为 ScoreComponents，再投影为 ModelInput。
// Builder 无状态，可被多个 worker 共享。
type Builder struct {
	components []Component
	schema     Schema
}

// BuilderOption 构建器配置选项
type BuilderOption func(*Builder)

// WithComponents 替换聚合列表
func WithComponents(components []Component) BuilderOption {
	return func(b *Builder) {
		b.components = components
	}
}

// WithSchema 替换 ModelInput 契约（通常来自已加载模型的特征列）
func WithSchema(schema Schema) BuilderOption {
	return func(b *Builder) {
		b.schema = schema
	}
}

// NewBuilder 创建构建器
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		components: DefaultComponents(),
		schema:     DefaultSchema(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Schema 返回构建器使用的 ModelInput 契约
func (b *Builder) Schema() Schema { return b.schema }

// Components 只计算 ScoreComponents 行
func (b *Builder) Components(targetID string, fs core.FeatureSet) *core.Record {
	rec := core.NewRecord(targetID)
	for _, c := range b.components {
		rec.Set(c.Column, c.Compute(fs, rec))
	}
	return rec
}

// Build 返回 (ScoreComponents, ModelInput)。ModelInput 与契约不一致时返回 SCHEMA_MISMATCH。
func (b *Builder) Build(targetID string, fs core.FeatureSet) (*core.Record, *core.Vector, error) {
	rec := b.Components(targetID, fs)
	vec := Prune(rec)
	if err := b.schema.Conform(vec); err != nil {
		return rec, nil, err
	}
	return rec, vec, nil
}

var defaultBuilder = NewBuilder()

// Build 使用默认聚合与契约构建描述符
func Build(targetID string, fs core.FeatureSet) (*core.Record, *core.Vector, error) {
	return defaultBuilder.Build(targetID, fs)
}

// DescribeNode 是流水线中的描述符阶段：填充 Item.Components 与 Item.Input。
type DescribeNode struct {
	Builder *Builder
}

func (n *DescribeNode) Name() string        { return "descriptor.build" }
func (n *DescribeNode) Kind() pipeline.Kind { return pipeline.KindDescribe }

func (n *DescribeNode) Process(_ context.Context, _ *core.RunContext, items []*core.Item) ([]*core.Item, error) {
	b := n.Builder
	if b == nil {
		b = defaultBuilder
	}
	for _, it := range items {
		if it == nil || it.Failed() {
			continue
		}
		rec, vec, err := b.Build(it.ID, it.Tables)
		if err != nil {
			return nil, err
		}
		it.Components = rec
		it.Input = vec
	}
	return items, nil
}
