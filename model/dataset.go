package model

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rushteam/targetdb/core"
	"github.com/rushteam/targetdb/pkg/conv"
)

// LabelColumn 是训练数据中的标签列
const LabelColumn = "DRUGGABLE"

// TrainingSet 是显式加载、不可变的训练数据快照。
// 同一个实例既用于拟合模型，也用于训练集成员查询，不会在调用时重新读取存储。
type TrainingSet struct {
	Columns []string    // 特征列（有序，不含标签列）
	IDs     []string    // 行索引（Target_id）
	X       [][]float64 // 特征矩阵：bool -> 1/0，缺失 -> 0
	Y       []int       // 标签：1 可成药 / 0 不可成药

	index map[string]int
}

// NewTrainingSet 由内存数据构建快照（拷贝输入）
func NewTrainingSet(columns, ids []string, x [][]float64, y []int) (*TrainingSet, error) {
	if len(ids) != len(x) || len(ids) != len(y) {
		return nil, fmt.Errorf("model: training set shape mismatch: %d ids, %d rows, %d labels", len(ids), len(x), len(y))
	}
	ts := &TrainingSet{
		Columns: append([]string(nil), columns...),
		IDs:     append([]string(nil), ids...),
		X:       make([][]float64, len(x)),
		Y:       append([]int(nil), y...),
		index:   make(map[string]int, len(ids)),
	}
	for i, row := range x {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("model: row %s has %d values for %d columns", ids[i], len(row), len(columns))
		}
		ts.X[i] = append([]float64(nil), row...)
		if _, dup := ts.index[ids[i]]; dup {
			return nil, fmt.Errorf("model: duplicate training id %s", ids[i])
		}
		ts.index[ids[i]] = i
	}
	return ts, nil
}

// Len 行数
func (ts *TrainingSet) Len() int { return len(ts.IDs) }

// Contains 标识符是否在训练快照的索引中（精确匹配）
func (ts *TrainingSet) Contains(id string) bool {
	_, ok := ts.index[id]
	return ok
}

// InTrainingSet 按输入顺序返回 "Yes" / "No"
func (ts *TrainingSet) InTrainingSet(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if ts.Contains(id) {
			out[i] = core.MembershipYes
		} else {
			out[i] = core.MembershipNo
		}
	}
	return out
}

// LoadTrainingSet 读取训练数据文件：pandas `to_json` 的 columns 布局，
// 可以是 .json 或包含单个 json 的 .zip。
func LoadTrainingSet(path string) (*TrainingSet, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return loadZip(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("model: open training data: %w", err)
	}
	defer f.Close()
	return ReadTrainingSet(f)
}

func loadZip(path string) (*TrainingSet, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("model: open training archive: %w", err)
	}
	defer zr.Close()
	var entry *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if entry == nil || strings.EqualFold(filepath.Ext(f.Name), ".json") {
			entry = f
			if strings.EqualFold(filepath.Ext(f.Name), ".json") {
				break
			}
		}
	}
	if entry == nil {
		return nil, fmt.Errorf("model: training archive %s is empty", path)
	}
	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("model: open %s: %w", entry.Name, err)
	}
	defer rc.Close()
	return ReadTrainingSet(rc)
}

// ReadTrainingSet 解析 {"col": {"row_id": value, ...}, ...}，保留列与行的出现顺序。
func ReadTrainingSet(r io.Reader) (*TrainingSet, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var (
		columns []string
		ids     []string
		rowOf   = make(map[string]int)
		cells   = make(map[string]map[string]any)
	)
	for dec.More() {
		col, err := stringToken(dec)
		if err != nil {
			return nil, err
		}
		if err := expectDelim(dec, '{'); err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		values := make(map[string]any)
		for dec.More() {
			id, err := stringToken(dec)
			if err != nil {
				return nil, err
			}
			var v any
			if err := dec.Decode(&v); err != nil {
				return nil, fmt.Errorf("model: decode %s[%s]: %w", col, id, err)
			}
			values[id] = v
			if _, ok := rowOf[id]; !ok {
				rowOf[id] = len(ids)
				ids = append(ids, id)
			}
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, err
		}
		if _, dup := cells[col]; dup {
			return nil, fmt.Errorf("model: duplicate column %s", col)
		}
		cells[col] = values
		columns = append(columns, col)
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}

	labels, ok := cells[LabelColumn]
	if !ok {
		return nil, fmt.Errorf("model: training data has no %s column", LabelColumn)
	}
	features := make([]string, 0, len(columns)-1)
	for _, c := range columns {
		if c != LabelColumn {
			features = append(features, c)
		}
	}

	x := make([][]float64, len(ids))
	y := make([]int, len(ids))
	for i, id := range ids {
		row := make([]float64, len(features))
		for j, c := range features {
			row[j] = cellValue(cells[c][id])
		}
		x[i] = row
		if cellValue(labels[id]) > 0 {
			y[i] = 1
		}
	}
	return NewTrainingSet(features, ids, x, y)
}

// cellValue 与预测时的预处理一致：bool -> 1/0，缺失 -> 0
func cellValue(v any) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case bool:
		if val {
			return 1
		}
		return 0
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0
		}
		return f
	}
	if f, ok := conv.ToFloat64(v); ok {
		return f
	}
	if b, ok := conv.ToBool(v); ok && b {
		return 1
	}
	return 0
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("model: read training data: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("model: training data: expected %q, got %v", want, tok)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("model: read training data: %w", err)
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("model: training data: expected key, got %v", tok)
	}
	return s, nil
}
