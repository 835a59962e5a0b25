package filter

import (
	"context"

	"github.com/rushteam/targetdb/core"
)

// ExcludeFilter 把指定靶点移出候选清单（例如已有上市药物的靶点）。
// 排除列表可以在内存中给出，也可以从 KV 存储读取。
type ExcludeFilter struct {
	// TargetIDs 是内存中的排除列表
	TargetIDs []string

	// Store 用于从存储中读取排除列表（可选）
	Store ExcludeStore

	// Key 是 Store 中排除列表的 key（可选）
	Key string

	ids map[string]struct{}
}

// ExcludeStore 是排除列表存储接口。
type ExcludeStore interface {
	// GetExcluded 获取排除的 Target_id 列表
	GetExcluded(ctx context.Context, key string) ([]string, error)
}

// NewExcludeFilter 创建一个排除过滤器。
func NewExcludeFilter(targetIDs []string, storeAdapter *StoreAdapter, key string) *ExcludeFilter {
	var store ExcludeStore
	if storeAdapter != nil {
		store = storeAdapter
	}
	ids := make(map[string]struct{}, len(targetIDs))
	for _, id := range targetIDs {
		ids[id] = struct{}{}
	}
	return &ExcludeFilter{
		TargetIDs: targetIDs,
		Store:     store,
		Key:       key,
		ids:       ids,
	}
}

func (f *ExcludeFilter) Name() string {
	return "filter.exclude"
}

func (f *ExcludeFilter) ShouldFilter(
	ctx context.Context,
	_ *core.RunContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}

	if f.ids != nil {
		if _, ok := f.ids[item.ID]; ok {
			return true, nil
		}
	} else {
		for _, id := range f.TargetIDs {
			if item.ID == id {
				return true, nil
			}
		}
	}

	if f.Store != nil && f.Key != "" {
		excluded, err := f.Store.GetExcluded(ctx, f.Key)
		if err != nil {
			if core.IsNotFound(err) {
				return false, nil
			}
			return false, err
		}
		for _, id := range excluded {
			if item.ID == id {
				return true, nil
			}
		}
	}

	return false, nil
}
