package batch

import (
	"context"

	"github.com/rushteam/targetdb/core"
)

// Source 提供一次运行要打分的靶点。
type Source interface {
	Targets(ctx context.Context, store core.TargetStore) ([]string, error)
}

// TargetList 是调用方显式给出的靶点列表；输出按该顺序排列。
type TargetList []string

func (l TargetList) Targets(context.Context, core.TargetStore) ([]string, error) {
	return append([]string(nil), l...), nil
}

// AllTargets 枚举主靶点表中的全部靶点。
type AllTargets struct{}

func (AllTargets) Targets(ctx context.Context, store core.TargetStore) ([]string, error) {
	targets, err := store.ListTargets(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(targets))
	for i, t := range targets {
		ids[i] = t.ID
	}
	return ids, nil
}

// dedupe 去重并保留首次出现的顺序，丢弃空标识符
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
