package core

import "time"

// RunContext 承载一次批处理运行的上下文信息，贯穿整个 Pipeline 透传。
// 每次 Runner.Run 都会新建，不跨运行复用。
type RunContext struct {
	RunID     string
	StartedAt time.Time

	// Worker 当前 worker 编号（从 0 开始）
	Worker int

	// Params 运行级参数（如 shortlist 表达式、输出路径等）
	Params map[string]any
}

// Param 读取运行级参数
func (rctx *RunContext) Param(key string) (any, bool) {
	if rctx == nil || rctx.Params == nil {
		return nil, false
	}
	v, ok := rctx.Params[key]
	return v, ok
}

// WithWorker 返回绑定 worker 编号的浅拷贝
func (rctx *RunContext) WithWorker(worker int) *RunContext {
	if rctx == nil {
		return &RunContext{Worker: worker}
	}
	cp := *rctx
	cp.Worker = worker
	return &cp
}
