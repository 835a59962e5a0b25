package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rushteam/targetdb/core"
)

// KVSink 把结果表写入 KV 存储（Redis / 内存）：
//   - {Prefix}:predictions  哈希，field 为 Target_id，value 为 JSON 行
//   - {Prefix}:ranked       有序集合，成功行按成药概率排序
//   - {Prefix}:shortlist    JSON 数组，候选清单（配置了过滤时）
type KVSink struct {
	Store  core.KeyValueStore
	Prefix string
	// TTL 秒，0 表示不过期（只作用于 shortlist）
	TTL int
}

func NewKVSink(store core.KeyValueStore, prefix string) *KVSink {
	if prefix == "" {
		prefix = "targetdb"
	}
	return &KVSink{Store: store, Prefix: prefix}
}

func (s *KVSink) Name() string { return "kv:" + s.Store.Name() }

func (s *KVSink) PredictionsKey() string { return s.Prefix + ":predictions" }
func (s *KVSink) RankedKey() string      { return s.Prefix + ":ranked" }
func (s *KVSink) ShortlistKey() string   { return s.Prefix + ":shortlist" }

// Write 用本次结果整体替换上一次运行写入的三个 key。
func (s *KVSink) Write(ctx context.Context, table *core.PredictionTable) error {
	if table == nil {
		return nil
	}
	for _, key := range []string{s.PredictionsKey(), s.RankedKey(), s.ShortlistKey()} {
		if err := s.Store.Delete(ctx, key); err != nil {
			return fmt.Errorf("report: clear %s: %w", key, err)
		}
	}
	for _, r := range table.Rows {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("report: encode %s: %w", r.TargetID, err)
		}
		if err := s.Store.HSet(ctx, s.PredictionsKey(), r.TargetID, data); err != nil {
			return fmt.Errorf("report: hset %s: %w", r.TargetID, err)
		}
		if r.Failed() {
			continue
		}
		if err := s.Store.ZAdd(ctx, s.RankedKey(), r.Probability, r.TargetID); err != nil {
			return fmt.Errorf("report: zadd %s: %w", r.TargetID, err)
		}
	}
	if table.Shortlist != nil {
		data, err := json.Marshal(table.Shortlist)
		if err != nil {
			return err
		}
		var ttl []int
		if s.TTL > 0 {
			ttl = append(ttl, s.TTL)
		}
		if err := s.Store.Set(ctx, s.ShortlistKey(), data, ttl...); err != nil {
			return fmt.Errorf("report: set shortlist: %w", err)
		}
	}
	return nil
}

// Lookup 读取单个靶点的结果行
func (s *KVSink) Lookup(ctx context.Context, targetID string) (core.Prediction, error) {
	var p core.Prediction
	data, err := s.Store.HGet(ctx, s.PredictionsKey(), targetID)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("report: decode %s: %w", targetID, err)
	}
	return p, nil
}

// Top 返回成药概率最高的 n 个靶点
func (s *KVSink) Top(ctx context.Context, n int64) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	return s.Store.ZRange(ctx, s.RankedKey(), 0, n-1)
}
