package core

// Record 是一行 ScoreComponents：有序列 + 值（float64 / bool / nil）。
// 它是模型输入列的超集，保留给人工报告使用。
type Record struct {
	TargetID string
	Columns  []string
	Values   map[string]any
}

// NewRecord 创建空记录
func NewRecord(targetID string) *Record {
	return &Record{TargetID: targetID, Values: make(map[string]any)}
}

// Set 写入一列；首次写入的列按写入顺序追加到 Columns。
func (r *Record) Set(column string, value any) {
	if r.Values == nil {
		r.Values = make(map[string]any)
	}
	if _, ok := r.Values[column]; !ok {
		r.Columns = append(r.Columns, column)
	}
	r.Values[column] = value
}

// Get 读取一列
func (r *Record) Get(column string) (any, bool) {
	if r == nil || r.Values == nil {
		return nil, false
	}
	v, ok := r.Values[column]
	return v, ok
}

// Has 列是否存在
func (r *Record) Has(column string) bool {
	_, ok := r.Get(column)
	return ok
}

// Vector 是一行 ModelInput：列顺序必须与模型训练特征完全一致。
type Vector struct {
	TargetID string
	Columns  []string
	Values   []float64
}

