package feature

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rushteam/targetdb/core"
	"github.com/rushteam/targetdb/pkg/conv"
)

// NormContext 是规整规则可见的靶点信息
type NormContext struct {
	TargetID string
	GeneName string
}

// Rule 是一条命名的规整规则，原地修改表。
type Rule interface {
	Name() string
	Apply(t *core.Table, nctx NormContext)
}

// RuleFunc 适配函数为 Rule
type RuleFunc struct {
	name string
	fn   func(t *core.Table, nctx NormContext)
}

func (r RuleFunc) Name() string { return r.name }

func (r RuleFunc) Apply(t *core.Table, nctx NormContext) { r.fn(t, nctx) }

// NewRule 创建命名规则
func NewRule(name string, fn func(t *core.Table, nctx NormContext)) Rule {
	return RuleFunc{name: name, fn: fn}
}

// UpperCase 把指定列的字符串值转为大写（结构编码 / 合子性标记等）。
func UpperCase(columns ...string) Rule {
	return NewRule("upper_case("+strings.Join(columns, ",")+")", func(t *core.Table, _ NormContext) {
		for _, col := range columns {
			idx := t.Index(col)
			if idx < 0 {
				continue
			}
			for _, row := range t.Rows {
				if s, ok := row[idx].(string); ok {
					row[idx] = strings.ToUpper(s)
				}
			}
		}
	})
}

// IsoformName 把 isoform 序号改写为 "<GENE>-<序号>"；基因名缺失时使用 Target_id。
func IsoformName(column string) Rule {
	return NewRule("isoform_name("+column+")", func(t *core.Table, nctx NormContext) {
		idx := t.Index(column)
		if idx < 0 {
			return
		}
		prefix := nctx.GeneName
		if prefix == "" {
			prefix = nctx.TargetID
		}
		for _, row := range t.Rows {
			ordinal, _ := conv.ToString(row[idx])
			if ordinal == "" || strings.HasPrefix(ordinal, prefix+"-") {
				continue
			}
			row[idx] = prefix + "-" + ordinal
		}
	})
}

// SortBy 按列数值升序稳定排序，非数值排在最后。
func SortBy(column string) Rule {
	return NewRule("sort_by("+column+")", func(t *core.Table, _ NormContext) {
		idx := t.Index(column)
		if idx < 0 {
			return
		}
		sort.SliceStable(t.Rows, func(i, j int) bool {
			a, aok := conv.ToFloat64(t.Rows[i][idx])
			b, bok := conv.ToFloat64(t.Rows[j][idx])
			switch {
			case aok && bok:
				return a < b
			case aok:
				return true
			default:
				return false
			}
		})
	})
}

// Coalesce 按键列合并重复行（例如仅大小写不同的同一 PDB 编码）。
// 合并时数值列取最大值，其余列保留首个非空值；行顺序按键首次出现的位置。
func Coalesce(keys ...string) Rule {
	return CoalesceBy(keys)
}

// CoalesceBy 同 Coalesce，但 lower 中的数值列取最小值（如 Resolution，越小越好）。
func CoalesceBy(keys []string, lower ...string) Rule {
	name := "coalesce(" + strings.Join(keys, ",") + ")"
	if len(lower) > 0 {
		name += ".min(" + strings.Join(lower, ",") + ")"
	}
	return NewRule(name, func(t *core.Table, _ NormContext) {
		prefer := make([]bool, len(t.Columns))
		for _, c := range lower {
			if i := t.Index(c); i >= 0 {
				prefer[i] = true
			}
		}
		idx := make([]int, 0, len(keys))
		for _, k := range keys {
			if i := t.Index(k); i >= 0 {
				idx = append(idx, i)
			}
		}
		if len(idx) == 0 || t.Len() < 2 {
			return
		}
		pos := make(map[string]int, t.Len())
		out := make([][]any, 0, t.Len())
		for _, row := range t.Rows {
			key := rowKey(row, idx)
			p, ok := pos[key]
			if !ok {
				pos[key] = len(out)
				out = append(out, row)
				continue
			}
			mergeRow(out[p], row, prefer)
		}
		t.Rows = out
	})
}

func rowKey(row []any, idx []int) string {
	var b strings.Builder
	for _, i := range idx {
		s, _ := conv.ToString(row[i])
		b.WriteString(strings.ToUpper(s))
		b.WriteByte(0)
	}
	return b.String()
}

// mergeRow 把 src 合并进 dst；preferLower[i] 为真的数值列取较小值，其余取较大值。
func mergeRow(dst, src []any, preferLower []bool) {
	for i := range dst {
		if i >= len(src) || src[i] == nil {
			continue
		}
		if dst[i] == nil {
			dst[i] = src[i]
			continue
		}
		if _, isStr := dst[i].(string); isStr {
			continue
		}
		a, aok := conv.ToFloat64(dst[i])
		b, bok := conv.ToFloat64(src[i])
		if !aok || !bok {
			continue
		}
		if lower := i < len(preferLower) && preferLower[i]; (lower && b < a) || (!lower && b > a) {
			dst[i] = src[i]
		}
	}
}

// Splitter 把一次查询的结果按某列拆分到多个输出类别。
type Splitter struct {
	column  string
	route   func(v any) (string, bool)
	outputs []string
}

// Outputs 返回全部可能的输出类别
func (s *Splitter) Outputs() []string { return s.outputs }

// Apply 执行拆分；每个输出类别都有表（可能为空），无法路由的行被丢弃。
func (s *Splitter) Apply(t *core.Table) map[string]*core.Table {
	out := make(map[string]*core.Table, len(s.outputs))
	for _, name := range s.outputs {
		out[name] = core.NewTable(name, t.Columns...)
	}
	idx := t.Index(s.column)
	if idx < 0 {
		return out
	}
	for _, row := range t.Rows {
		name, ok := s.route(row[idx])
		if !ok {
			continue
		}
		out[name].Rows = append(out[name].Rows, row)
	}
	return out
}

// SplitByFlag 按布尔列拆分：真值进入 whenTrue，其余（包括无法解析）进入 whenFalse。
func SplitByFlag(column, whenTrue, whenFalse string) *Splitter {
	return &Splitter{
		column:  column,
		outputs: []string{whenFalse, whenTrue},
		route: func(v any) (string, bool) {
			if b, ok := conv.ToBool(v); ok && b {
				return whenTrue, true
			}
			return whenFalse, true
		},
	}
}

// SplitByValue 按列取值（忽略大小写与首尾空白）路由到输出类别。
func SplitByValue(column string, routes map[string]string) *Splitter {
	norm := make(map[string]string, len(routes))
	seen := make(map[string]struct{}, len(routes))
	var outputs []string
	keys := make([]string, 0, len(routes))
	for k := range routes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := routes[k]
		norm[strings.ToUpper(strings.TrimSpace(k))] = v
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			outputs = append(outputs, v)
		}
	}
	return &Splitter{
		column:  column,
		outputs: outputs,
		route: func(v any) (string, bool) {
			s, _ := conv.ToString(v)
			name, ok := norm[strings.ToUpper(strings.TrimSpace(s))]
			return name, ok
		},
	}
}

// String 便于日志输出
func (s *Splitter) String() string {
	return fmt.Sprintf("split(%s -> %s)", s.column, strings.Join(s.outputs, ","))
}
