// Package targetdb 对 targetDB 靶点做成药性（tractability）批量预测。
//
// 设计要点：
// - Pipeline-first: 单靶点处理通过 Node 串联（Extract → Describe → Classify → Filter）
// - Failure-isolated: 单靶点失败只产生失败行，存储/模式错误才终止整批
// - 确定性: 相同数据库与训练集产出逐位相同的预测表
package targetdb

import (
	"github.com/rushteam/targetdb/batch"
	"github.com/rushteam/targetdb/core"
	"github.com/rushteam/targetdb/pipeline"
)

// 轻量 facade：便于用户直接 import "targetdb" 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

type Runner = batch.Runner
type PredictionTable = core.PredictionTable

const (
	KindExtract     = pipeline.KindExtract
	KindDescribe    = pipeline.KindDescribe
	KindClassify    = pipeline.KindClassify
	KindFilter      = pipeline.KindFilter
	KindPostProcess = pipeline.KindPostProcess
)

// NewRunner 见 batch.NewRunner
var NewRunner = batch.NewRunner
