package feature

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rushteam/targetdb/core"
	"github.com/rushteam/targetdb/pipeline"
)

// Extractor 按类别注册表为单个靶点抽取全部特征表。
//
// 失败策略：
//   - 连接类错误（UNAVAILABLE）立即返回，由编排器终止整批
//   - 单个类别查询失败（表缺失、列异常等）降级为空表并记录告警
//
// Extractor 绑定一个 Session，不能跨 worker 共享。
type Extractor struct {
	session    core.Session
	categories []Category
	logger     *zap.Logger
	timeout    time.Duration
}

var _ core.FeatureExtractor = (*Extractor)(nil)

// ExtractorOption 抽取器配置选项
type ExtractorOption func(*Extractor)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) ExtractorOption {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithCategories 替换类别注册表
func WithCategories(categories []Category) ExtractorOption {
	return func(e *Extractor) {
		e.categories = categories
	}
}

// WithQueryTimeout 设置单次类别查询超时（0 表示不限制）
func WithQueryTimeout(d time.Duration) ExtractorOption {
	return func(e *Extractor) {
		e.timeout = d
	}
}

// NewExtractor 创建抽取器
func NewExtractor(session core.Session, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		session:    session,
		categories: DefaultCategories(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Categories 返回输出类别名
func (e *Extractor) Categories() []string {
	return OutputCategories(e.categories)
}

// Extract 抽取单个靶点的全部类别。返回的 FeatureSet 恰好包含注册表中的每个输出类别，
// 没有数据的类别为空表。
func (e *Extractor) Extract(ctx context.Context, targetID string) (core.FeatureSet, error) {
	if targetID == "" {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput, "feature: empty target id")
	}
	fs := make(core.FeatureSet, len(e.categories)+4)
	nctx := NormContext{TargetID: targetID}

	for _, c := range e.categories {
		tables, err := e.extractCategory(ctx, c, nctx)
		if err != nil {
			if core.IsFatal(err) || ctx.Err() != nil {
				return nil, err
			}
			e.logger.Warn("category query failed, using empty table",
				zap.String("target_id", targetID),
				zap.String("category", c.Name),
				zap.Error(err),
			)
			tables = c.empty()
		}
		for name, t := range tables {
			fs[name] = t
		}
		if c.Name == CategoryGeneralInfo {
			nctx.GeneName = geneName(fs.Get(CategoryGeneralInfo))
		}
	}
	return fs, nil
}

// ExtractBatch 依次抽取多个靶点（共用当前会话）。
func (e *Extractor) ExtractBatch(ctx context.Context, targetIDs []string) (map[string]core.FeatureSet, error) {
	out := make(map[string]core.FeatureSet, len(targetIDs))
	for _, id := range targetIDs {
		if _, ok := out[id]; ok {
			continue
		}
		fs, err := e.Extract(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", id, err)
		}
		out[id] = fs
	}
	return out, nil
}

func (e *Extractor) extractCategory(ctx context.Context, c Category, nctx NormContext) (map[string]*core.Table, error) {
	qctx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	t, err := e.session.Query(qctx, c.Name, c.Query, c.Columns, c.args(nctx.TargetID)...)
	if err != nil {
		// 单类别查询超时只降级该类别；调用方 ctx 的取消/超时仍原样上抛
		if qctx.Err() != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("feature: category %s exceeded query timeout %s: %v", c.Name, e.timeout, qctx.Err())
		}
		return nil, err
	}
	for _, r := range c.Rules {
		r.Apply(t, nctx)
	}
	if c.Split == nil {
		t.Category = c.Name
		return map[string]*core.Table{c.Name: t}, nil
	}
	return c.Split.Apply(t), nil
}

func geneName(t *core.Table) string {
	if t.Empty() {
		return ""
	}
	return t.String(0, "Gene_name")
}

// ExtractNode 是流水线中的特征抽取阶段：填充 Item.Tables 与 Item.GeneName。
type ExtractNode struct {
	Extractor core.FeatureExtractor
}

func (n *ExtractNode) Name() string        { return "feature.extract" }
func (n *ExtractNode) Kind() pipeline.Kind { return pipeline.KindExtract }

func (n *ExtractNode) Process(ctx context.Context, _ *core.RunContext, items []*core.Item) ([]*core.Item, error) {
	if n.Extractor == nil {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeInternalError, "feature: extractor not configured")
	}
	for _, it := range items {
		if it == nil || it.Failed() {
			continue
		}
		fs, err := n.Extractor.Extract(ctx, it.ID)
		if err != nil {
			return nil, err
		}
		it.Tables = fs
		if gene := geneName(fs.Get(CategoryGeneralInfo)); gene != "" {
			it.GeneName = gene
		}
	}
	return items, nil
}
