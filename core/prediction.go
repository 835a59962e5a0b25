package core

import (
	"math"
	"sort"
)

// 输出表的稳定列名，报告层/持久化层直接消费。
const (
	ColTargetID      = "Target_id"
	ColGeneName      = "Gene_name"
	ColProbability   = "Tractability_probability"
	ColTractable     = "Tractable"
	ColInTrainingSet = "In_training_set"
	ColFailure       = "Failure_reason"
)

// PredictionColumns 输出表列顺序
var PredictionColumns = []string{
	ColTargetID, ColGeneName, ColProbability, ColTractable, ColInTrainingSet, ColFailure,
}

// 成药标签
const (
	LabelTractable    = "Tractable"
	LabelNotTractable = "Not tractable"
	LabelFailed       = "Failed"

	// TractableThreshold 概率百分比阈值（含边界）
	TractableThreshold = 50.0
)

// TractabilityLabel 按未舍入的概率百分比（100 × p1）给出标签：>= 50% 为 Tractable。
func TractabilityLabel(probabilityPct float64) string {
	if probabilityPct >= TractableThreshold {
		return LabelTractable
	}
	return LabelNotTractable
}

// ProbabilityPct 将类别 1 概率转换为展示用百分比（保留两位小数），不参与阈值判断。
func ProbabilityPct(p1 float64) float64 {
	return math.Round(p1*100*100) / 100
}

// Prediction 是单个靶点的预测结果行。
type Prediction struct {
	TargetID      string  `json:"Target_id"`
	GeneName      string  `json:"Gene_name"`
	Probability   float64 `json:"Tractability_probability"`
	Tractable     string  `json:"Tractable"`
	InTrainingSet bool    `json:"In_training_set"`
	FailureReason string  `json:"Failure_reason,omitempty"`
}

// Failed 是否为失败行
func (p Prediction) Failed() bool { return p.FailureReason != "" }

// NewPrediction 由成功的 Item 构建结果行
func NewPrediction(it *Item) Prediction {
	if it.Err != nil {
		return FailedPrediction(it.ID, it.GeneName, it.Err)
	}
	pct := ProbabilityPct(it.Score)
	return Prediction{
		TargetID:      it.ID,
		GeneName:      it.GeneName,
		Probability:   pct,
		Tractable:     TractabilityLabel(it.Score * 100),
		InTrainingSet: it.InTrainingSet,
	}
}

// FailedPrediction 构建失败行
func FailedPrediction(id, gene string, err error) Prediction {
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	return Prediction{
		TargetID:      id,
		GeneName:      gene,
		Tractable:     LabelFailed,
		FailureReason: reason,
	}
}

// PredictionTable 是编排器对外的唯一产物：每个请求靶点恰好一行。
type PredictionTable struct {
	Rows []Prediction

	// Shortlist 通过候选清单过滤的 Target_id（按调用方顺序）；未配置过滤时为 nil
	Shortlist []string
}

func (t *PredictionTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Failed 返回失败行数
func (t *PredictionTable) Failed() int {
	n := 0
	for _, r := range t.Rows {
		if r.Failed() {
			n++
		}
	}
	return n
}

// Lookup 按 Target_id 查找
func (t *PredictionTable) Lookup(id string) (Prediction, bool) {
	for _, r := range t.Rows {
		if r.TargetID == id {
			return r, true
		}
	}
	return Prediction{}, false
}

// SortByOrder 按调用方给定的靶点顺序重排；不在 order 中的行保持相对顺序排在最后。
func (t *PredictionTable) SortByOrder(order []string) {
	pos := make(map[string]int, len(order))
	for i, id := range order {
		if _, ok := pos[id]; !ok {
			pos[id] = i
		}
	}
	sort.SliceStable(t.Rows, func(i, j int) bool {
		pi, iok := pos[t.Rows[i].TargetID]
		pj, jok := pos[t.Rows[j].TargetID]
		switch {
		case iok && jok:
			return pi < pj
		case iok:
			return true
		default:
			return false
		}
	})
}

// Ranked 返回按成药概率降序排列的副本（失败行排在最后），即候选清单。
func (t *PredictionTable) Ranked() *PredictionTable {
	rows := make([]Prediction, len(t.Rows))
	copy(rows, t.Rows)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Failed() != rows[j].Failed() {
			return !rows[i].Failed()
		}
		return rows[i].Probability > rows[j].Probability
	})
	return &PredictionTable{Rows: rows, Shortlist: t.Shortlist}
}
