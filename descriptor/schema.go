package descriptor

import (
	"fmt"
	"strings"

	"github.com/rushteam/targetdb/core"
	"github.com/rushteam/targetdb/pkg/conv"
)

// SchemaVersion 标识 ScoreComponents / ModelInput 列契约的版本，
// 与训练数据快照（ml_training_data_13_01_2020）绑定。
const SchemaVersion = "targetdb-descriptor/2020-01-13"

// DropColumns 是 ScoreComponents 中只用于报告、不进入模型的列。
var DropColumns = []string{
	"OT_max_association_score",
	"Heart_alert",
	"Liver_alert",
	"Kidney_alert",
	"dis_AScore",
	"bio_EScore",
	"safe_EScore",
	"chembl_selective_M",
	"chembl_selective_G",
	"chembl_selective_E",
	"bindingDB_phase2",
	"commercial_potent",
	"information_score",
	"gen_AQualScore",
	"genetic_NORM",
}

var (
	// ComponentColumns 是 ScoreComponents 的有序列
	ComponentColumns = componentColumns(DefaultComponents())
	// ModelInputColumns 是 ModelInput 的有序列（ComponentColumns 去掉 DropColumns）
	ModelInputColumns = PruneColumns(ComponentColumns)

	dropped = func() map[string]struct{} {
		m := make(map[string]struct{}, len(DropColumns))
		for _, c := range DropColumns {
			m[c] = struct{}{}
		}
		return m
	}()
)

// IsDropped 列是否在 DropColumns 中
func IsDropped(column string) bool {
	_, ok := dropped[column]
	return ok
}

// PruneColumns 去掉 DropColumns，其余列保持原顺序。
func PruneColumns(columns []string) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if !IsDropped(c) {
			out = append(out, c)
		}
	}
	return out
}

// Prune 把 ScoreComponents 行投影为 ModelInput 行：
// 去掉 DropColumns，布尔值映射为 1/0，缺失值填 0，列顺序与记录一致。
// 对任意记录都有定义，且 Prune(Prune(r)) 的列与值不变。
func Prune(rec *core.Record) *core.Vector {
	vec := &core.Vector{TargetID: rec.TargetID}
	for _, c := range rec.Columns {
		if IsDropped(c) {
			continue
		}
		v, _ := rec.Get(c)
		vec.Columns = append(vec.Columns, c)
		vec.Values = append(vec.Values, numeric(v))
	}
	return vec
}

// FromVector 把 ModelInput 行还原为记录（用于复核/再次投影）
func FromVector(v *core.Vector) *core.Record {
	rec := core.NewRecord(v.TargetID)
	for i, c := range v.Columns {
		rec.Set(c, v.Values[i])
	}
	return rec
}

func numeric(v any) float64 {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	if f, ok := conv.ToFloat64(v); ok {
		return f
	}
	if b, ok := conv.ToBool(v); ok && b {
		return 1
	}
	return 0
}

// Schema 是静态声明、带版本的有序列契约。
type Schema struct {
	Version string
	Columns []string
}

// DefaultSchema 返回当前描述符的 ModelInput 契约
func DefaultSchema() Schema {
	return NewSchema(SchemaVersion, ModelInputColumns)
}

// NewSchema 创建契约（拷贝列）
func NewSchema(version string, columns []string) Schema {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return Schema{Version: version, Columns: cols}
}

// Diff 返回相对契约缺失与多出的列
func (s Schema) Diff(columns []string) (missing, extra []string) {
	have := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		have[c] = struct{}{}
	}
	want := make(map[string]struct{}, len(s.Columns))
	for _, c := range s.Columns {
		want[c] = struct{}{}
		if _, ok := have[c]; !ok {
			missing = append(missing, c)
		}
	}
	for _, c := range columns {
		if _, ok := want[c]; !ok {
			extra = append(extra, c)
		}
	}
	return missing, extra
}

// ConformColumns 校验列集合与顺序完全一致；不一致返回 SCHEMA_MISMATCH，不做重排或截断。
func (s Schema) ConformColumns(columns []string) error {
	missing, extra := s.Diff(columns)
	if len(missing) > 0 || len(extra) > 0 {
		return core.NewDomainError(core.ModuleDescriptor, core.ErrorCodeSchemaMismatch, fmt.Sprintf(
			"descriptor: schema %s mismatch: missing [%s], unexpected [%s]",
			s.Version, strings.Join(missing, ", "), strings.Join(extra, ", "),
		))
	}
	if len(columns) != len(s.Columns) {
		return core.NewDomainError(core.ModuleDescriptor, core.ErrorCodeSchemaMismatch, fmt.Sprintf(
			"descriptor: schema %s mismatch: %d columns, want %d (duplicates)", s.Version, len(columns), len(s.Columns),
		))
	}
	for i, c := range columns {
		if c != s.Columns[i] {
			return core.NewDomainError(core.ModuleDescriptor, core.ErrorCodeSchemaMismatch, fmt.Sprintf(
				"descriptor: schema %s mismatch: column %d is %q, want %q", s.Version, i, c, s.Columns[i],
			))
		}
	}
	return nil
}

// Conform 校验 ModelInput 行
func (s Schema) Conform(v *core.Vector) error {
	if v == nil {
		return core.NewDomainError(core.ModuleDescriptor, core.ErrorCodeInvalidInput, "descriptor: nil vector")
	}
	if len(v.Values) != len(v.Columns) {
		return core.NewDomainError(core.ModuleDescriptor, core.ErrorCodeSchemaMismatch, fmt.Sprintf(
			"descriptor: vector has %d values for %d columns", len(v.Values), len(v.Columns),
		))
	}
	return s.ConformColumns(v.Columns)
}
