package core

import "github.com/rushteam/targetdb/pkg/utils"

// Item 是批处理链路中的统一承载结构：一个靶点的特征表、描述符、分数与标签。
// 每个 Item 只属于一个 worker，流水线各阶段按顺序填充其字段。
type Item struct {
	ID       string // Target_id
	GeneName string

	// Tables 特征抽取结果（Extractor 填充）
	Tables FeatureSet
	// Components ScoreComponents 行（Descriptor Builder 填充）
	Components *Record
	// Input ModelInput 行（Descriptor Builder 填充）
	Input *Vector

	// Score 成药概率（类别 1 的概率，0~1）
	Score float64
	// Class 模型预测类别：0 = 不可成药，1 = 可成药
	Class int
	// InTrainingSet 是否出现在冻结的训练集快照中
	InTrainingSet bool

	// Err 单靶点失败原因；非 nil 时该 Item 只输出失败行
	Err error

	Meta   map[string]any
	Labels map[string]utils.Label
}

func NewItem(id string) *Item {
	return &Item{
		ID:     id,
		Tables: make(FeatureSet),
		Meta:   make(map[string]any),
		Labels: make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// Failed 是否已标记失败
func (it *Item) Failed() bool { return it.Err != nil }
