package utils

// Label 是单靶点处理链上的可解释标记：由哪个阶段、给出了什么结论。
// 例如 rank_model=random_forest（来源 rank）、filtered=true（来源 filter.expr）。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // rank / filter / filter.expr / filter.exclude ...
}

// MergeLabel 用于合并同名 Label，保留每个阶段写入的历史：
// - Value: 以 '|' 累积
// - Source: 以 ',' 累积
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := existing
	merged.Value = existing.Value + "|" + incoming.Value
	switch {
	case existing.Source == "":
		merged.Source = incoming.Source
	case incoming.Source == "":
		merged.Source = existing.Source
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}
