package filter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rushteam/targetdb/core"
)

// StoreAdapter 将 core.KeyValueStore 适配为过滤器所需的存储接口。
type StoreAdapter struct {
	store core.KeyValueStore
}

// NewStoreAdapter 创建一个 core.KeyValueStore 适配器。
func NewStoreAdapter(s core.KeyValueStore) *StoreAdapter {
	return &StoreAdapter{store: s}
}

// GetExcluded 从 Store 读取排除列表（JSON 字符串数组）。
func (a *StoreAdapter) GetExcluded(ctx context.Context, key string) ([]string, error) {
	data, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("filter: decode %s: %w", key, err)
	}
	return ids, nil
}
