package pipeline

import (
	"context"

	"github.com/rushteam/targetdb/core"
)

// Kind 用于标记 Node 类型，方便观测/治理/编排（例如按阶段打点）。
type Kind string

const (
	KindExtract     Kind = "extract"     // 特征抽取：从关系库读取各类别特征表
	KindDescribe    Kind = "describe"    // 描述符：特征表 -> ScoreComponents -> ModelInput
	KindClassify    Kind = "classify"    // 分类：成药概率与训练集成员标记
	KindFilter      Kind = "filter"      // 过滤：候选清单筛选
	KindPostProcess Kind = "postprocess" // 后处理：补充标签或结果修饰
)

// Node 是 Pipeline 的最小可扩展单元。
// 统一采用“输入 items -> 输出 items”的形态；Filter 可以截断，其余阶段原地填充 Item。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RunContext,
		items []*core.Item,
	) ([]*core.Item, error)
}
