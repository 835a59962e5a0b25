package core

import (
	"strings"

	"github.com/rushteam/targetdb/pkg/conv"
)

// Table 是单个靶点、单个生物学类别下的特征表（FeatureTable）。
// 每行以子实体为键（isoform id、pocket id 等），值为驱动返回的标量（已规整为
// int64 / float64 / string / bool / nil）。
type Table struct {
	Category string
	Columns  []string
	Rows     [][]any
}

// NewTable 创建空表
func NewTable(category string, columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Category: category, Columns: cols}
}

// Len 返回行数，nil 表视为空表。
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty 表是否没有任何行
func (t *Table) Empty() bool { return t.Len() == 0 }

// Index 返回列下标，不存在时返回 -1（大小写不敏感，兼容 Postgres 的小写列名）。
func (t *Table) Index(column string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	for i, c := range t.Columns {
		if strings.EqualFold(c, column) {
			return i
		}
	}
	return -1
}

// Value 返回第 row 行 column 列的原始值
func (t *Table) Value(row int, column string) any {
	idx := t.Index(column)
	if idx < 0 || row < 0 || row >= t.Len() || idx >= len(t.Rows[row]) {
		return nil
	}
	return t.Rows[row][idx]
}

// Float 返回数值，无法转换时 ok=false
func (t *Table) Float(row int, column string) (float64, bool) {
	return conv.ToFloat64(t.Value(row, column))
}

// String 返回字符串值，nil 为空串
func (t *Table) String(row int, column string) string {
	s, _ := conv.ToString(t.Value(row, column))
	return s
}

// Floats 返回整列可转换为数值的值（跳过 NULL / 非数值）
func (t *Table) Floats(column string) []float64 {
	out := make([]float64, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		if v, ok := t.Float(i, column); ok {
			out = append(out, v)
		}
	}
	return out
}

// Distinct 返回整列去重后的非空字符串值个数
func (t *Table) Distinct(column string) int {
	seen := make(map[string]struct{}, t.Len())
	for i := 0; i < t.Len(); i++ {
		if s := t.String(i, column); s != "" {
			seen[s] = struct{}{}
		}
	}
	return len(seen)
}

// Append 追加一行（长度不足时补 nil）
func (t *Table) Append(row []any) {
	r := make([]any, len(t.Columns))
	copy(r, row)
	t.Rows = append(t.Rows, r)
}

// Clone 深拷贝表结构与行切片（值本身是不可变标量）。
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := NewTable(t.Category, t.Columns...)
	out.Rows = make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = append([]any(nil), r...)
	}
	return out
}

// FeatureSet 是一个靶点的全部特征表：类别名 -> 表。
// 同时供描述符构建与报告层使用，两者都不修改其内容。
type FeatureSet map[string]*Table

// Get 获取类别表；缺失的类别返回空表，下游按中性值处理。
func (fs FeatureSet) Get(category string) *Table {
	if t, ok := fs[category]; ok && t != nil {
		return t
	}
	return NewTable(category)
}

// NonEmpty 返回有数据的类别数
func (fs FeatureSet) NonEmpty() int {
	n := 0
	for _, t := range fs {
		if !t.Empty() {
			n++
		}
	}
	return n
}
