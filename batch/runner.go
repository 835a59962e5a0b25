package batch

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/targetdb/core"
	"github.com/rushteam/targetdb/descriptor"
	"github.com/rushteam/targetdb/feature"
	"github.com/rushteam/targetdb/pipeline"
	"github.com/rushteam/targetdb/rank"
)

// PipelineBuilder 为单个 worker 构建处理链；session 为该 worker 独占。
type PipelineBuilder func(session core.Session, logger *zap.Logger) (*pipeline.Pipeline, error)

// Runner 是批处理编排器：枚举靶点，把共享的只读模型广播给固定数量的 worker，
// 每个 worker 使用自己的会话逐个处理靶点，最后汇总为每个靶点恰好一行的结果表。
//
// 失败策略：
//   - 单靶点错误与 panic 转为失败行，其余靶点继续
//   - UNAVAILABLE / SCHEMA_MISMATCH 终止整批，不返回部分结果
type Runner struct {
	store   core.TargetStore
	model   core.TractabilityModel
	schema  descriptor.Schema
	build   PipelineBuilder
	logger  *zap.Logger
	metrics *Metrics
	timeout time.Duration
	params  map[string]any
}

// Option 编排器配置选项
type Option func(*Runner)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics 设置指标
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithPipeline 替换默认的处理链构建方式
func WithPipeline(build PipelineBuilder) Option {
	return func(r *Runner) {
		if build != nil {
			r.build = build
		}
	}
}

// WithSchema 设置描述符契约（启动时与模型特征列比对）
func WithSchema(s descriptor.Schema) Option {
	return func(r *Runner) { r.schema = s }
}

// WithTargetTimeout 设置单靶点处理超时（0 表示不限制），超时计为该靶点失败。
func WithTargetTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithParams 设置运行级参数（透传到 RunContext.Params）
func WithParams(params map[string]any) Option {
	return func(r *Runner) { r.params = params }
}

// NewRunner 创建编排器。model 在整个运行期间只读，被所有 worker 共享。
func NewRunner(store core.TargetStore, model core.TractabilityModel, opts ...Option) *Runner {
	r := &Runner{
		store:   store,
		model:   model,
		schema:  descriptor.DefaultSchema(),
		logger:  zap.NewNop(),
		timeout: (&core.DefaultBatchConfig{}).DefaultTargetTimeout(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.build == nil {
		r.build = DefaultPipeline(r.model, r.schema)
	}
	return r
}

// DefaultPipeline 返回默认处理链：extract -> describe -> classify
func DefaultPipeline(model core.TractabilityModel, schema descriptor.Schema) PipelineBuilder {
	return func(session core.Session, logger *zap.Logger) (*pipeline.Pipeline, error) {
		return &pipeline.Pipeline{Nodes: []pipeline.Node{
			&feature.ExtractNode{Extractor: feature.NewExtractor(session, feature.WithLogger(logger))},
			&descriptor.DescribeNode{Builder: descriptor.NewBuilder(descriptor.WithSchema(schema))},
			&rank.TractabilityNode{Model: model},
		}}, nil
	}
}

// CheckSchema 校验模型特征列与描述符契约一致
func (r *Runner) CheckSchema() error {
	if r.model == nil {
		return core.NewDomainError(core.ModuleBatch, core.ErrorCodeInternalError, "batch: model not configured")
	}
	if err := r.schema.ConformColumns(r.model.FeatureColumns()); err != nil {
		return core.WrapDomainError(core.ModuleBatch, core.ErrorCodeSchemaMismatch, err,
			"batch: model features do not match descriptor schema %s", r.schema.Version)
	}
	return nil
}

// Run 对 source 给出的全部靶点打分。workers <= 0 时使用 DefaultBatchConfig 的 worker 数。
func (r *Runner) Run(ctx context.Context, source Source, workers int) (table *core.PredictionTable, err error) {
	start := time.Now()
	shortlisted := 0
	defer func() { r.metrics.run(time.Since(start), err, shortlisted) }()

	if err := r.CheckSchema(); err != nil {
		return nil, err
	}
	if source == nil {
		source = AllTargets{}
	}
	requested, err := source.Targets(ctx, r.store)
	if err != nil {
		return nil, fmt.Errorf("batch: enumerate targets: %w", err)
	}
	ids := dedupe(requested)
	if len(ids) == 0 {
		return &core.PredictionTable{}, nil
	}

	genes, err := r.geneNames(ctx)
	if err != nil {
		return nil, err
	}

	if workers <= 0 {
		workers = (&core.DefaultBatchConfig{}).DefaultWorkers()
	}
	workers = min(workers, len(ids))

	rctx := &core.RunContext{
		RunID:     strconv.FormatInt(start.UnixNano(), 36),
		StartedAt: start,
		Params:    r.params,
	}
	r.logger.Info("batch run started",
		zap.String("run_id", rctx.RunID),
		zap.Int("targets", len(ids)),
		zap.Int("workers", workers),
	)

	items := make([]*core.Item, len(ids))
	passed := make([]bool, len(ids))
	var filtered atomic.Bool
	for i, id := range ids {
		items[i] = core.NewItem(id)
		items[i].GeneName = genes[id]
	}

	jobs := make(chan int)
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer close(jobs)
		for i := range items {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < workers; w++ {
		wctx := rctx.WithWorker(w)
		eg.Go(func() error {
			return r.work(gctx, wctx, jobs, items, passed, &filtered)
		})
	}
	if err := eg.Wait(); err != nil {
		r.logger.Error("batch run aborted", zap.String("run_id", rctx.RunID), zap.Error(err))
		return nil, err
	}

	table = &core.PredictionTable{Rows: make([]core.Prediction, len(items))}
	if filtered.Load() {
		table.Shortlist = make([]string, 0, len(items))
	}
	for i, it := range items {
		table.Rows[i] = core.NewPrediction(it)
		if filtered.Load() && passed[i] {
			table.Shortlist = append(table.Shortlist, it.ID)
		}
	}
	table.SortByOrder(ids)
	shortlisted = len(table.Shortlist)

	r.logger.Info("batch run finished",
		zap.String("run_id", rctx.RunID),
		zap.Int("targets", table.Len()),
		zap.Int("failed", table.Failed()),
		zap.Duration("duration", time.Since(start)),
	)
	return table, nil
}

// geneNames 读取主靶点表的基因名，用于回填结果行（包括失败行）。
func (r *Runner) geneNames(ctx context.Context) (map[string]string, error) {
	targets, err := r.store.ListTargets(ctx)
	if err != nil {
		if core.IsFatal(err) {
			return nil, err
		}
		r.logger.Warn("gene name lookup failed", zap.Error(err))
		return map[string]string{}, nil
	}
	genes := make(map[string]string, len(targets))
	for _, t := range targets {
		genes[t.ID] = t.GeneName
	}
	return genes, nil
}

// hasFilterNode 处理链是否包含过滤阶段（默认处理链不含）
func hasFilterNode(p *pipeline.Pipeline) bool {
	for _, k := range p.Kinds() {
		if k == pipeline.KindFilter {
			return true
		}
	}
	return false
}

// work 是单个 worker 的循环；filtered 由本次 Run 独有，记录处理链是否含过滤阶段。
func (r *Runner) work(ctx context.Context, rctx *core.RunContext, jobs <-chan int, items []*core.Item, passed []bool, filtered *atomic.Bool) error {
	logger := r.logger.With(zap.Int("worker", rctx.Worker))

	session, err := r.store.Session(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Warn("close session", zap.Error(cerr))
		}
	}()

	p, err := r.build(session, logger)
	if err != nil {
		return core.WrapDomainError(core.ModuleBatch, core.ErrorCodeInternalError, err, "batch: build pipeline")
	}
	if p.Observer == nil {
		p.Observer = r.metrics.observer()
	}
	if hasFilterNode(p) {
		filtered.Store(true)
	}

	for i := range jobs {
		it := items[i]
		r.metrics.begin()
		ok, err := r.processOne(ctx, p, rctx, it)
		r.metrics.end()
		if err != nil {
			return err
		}
		passed[i] = ok
		r.metrics.target(it.Failed())
		if it.Failed() {
			logger.Warn("target failed", zap.String("target_id", it.ID), zap.Error(it.Err))
		} else {
			logger.Debug("target scored", zap.String("target_id", it.ID), zap.Float64("score", it.Score))
		}
	}
	return nil
}

// processOne 处理单个靶点。返回的 error 只包含需要终止整批的错误；
// 其余错误与 panic 写入 it.Err。ok 表示该靶点出现在处理链输出中（候选清单）。
func (r *Runner) processOne(ctx context.Context, p *pipeline.Pipeline, rctx *core.RunContext, it *core.Item) (ok bool, fatal error) {
	tctx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			it.Err = fmt.Errorf("panic: %v", rec)
			r.logger.Error("target panicked",
				zap.String("target_id", it.ID),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			ok, fatal = false, nil
		}
	}()

	out, err := p.Run(tctx, rctx, []*core.Item{it})
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if tctx.Err() != nil {
			it.Err = fmt.Errorf("target timed out after %s: %w", r.timeout, err)
			return false, nil
		}
		if core.IsFatal(err) {
			return false, err
		}
		it.Err = err
		return false, nil
	}
	for _, o := range out {
		if o == it {
			return !it.Failed(), nil
		}
	}
	return false, nil
}
