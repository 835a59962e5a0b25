package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rushteam/targetdb/core"
)

// MemoryStore 是进程内的 KeyValueStore。未配置 Redis 时承载结果落地与排除列表，
// 数据只在本进程内可见。字符串键支持 TTL，过期键读取时视为不存在并由后台定期清理。
type MemoryStore struct {
	mu      sync.RWMutex
	strs    map[string]memValue
	hashes  map[string]map[string][]byte
	zsets   map[string]map[string]float64
	janitor *time.Ticker
	done    chan struct{}
	once    sync.Once
}

type memValue struct {
	data    []byte
	expires time.Time // 零值表示不过期
}

func (v memValue) expired(now time.Time) bool {
	return !v.expires.IsZero() && now.After(v.expires)
}

func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		strs:    make(map[string]memValue),
		hashes:  make(map[string]map[string][]byte),
		zsets:   make(map[string]map[string]float64),
		janitor: time.NewTicker(10 * time.Second),
		done:    make(chan struct{}),
	}
	go m.sweep()
	return m
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.strs[key]
	if !ok || v.expired(time.Now()) {
		return nil, core.ErrKeyNotFound
	}
	return v.data, nil
}

// Set 写入字符串键；ttl 单位为秒，缺省或 <= 0 表示不过期。
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl ...int) error {
	v := memValue{data: value}
	if len(ttl) > 0 && ttl[0] > 0 {
		v.expires = time.Now().Add(time.Duration(ttl[0]) * time.Second)
	}
	m.mu.Lock()
	m.strs[key] = v
	m.mu.Unlock()
	return nil
}

// Delete 与 Redis DEL 一致：不区分类型，同名键一并删除。
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.strs, key)
	delete(m.hashes, key)
	delete(m.zsets, key)
	return nil
}

func (m *MemoryStore) ZAdd(_ context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	z := m.zsets[key]
	if z == nil {
		z = make(map[string]float64)
		m.zsets[key] = z
	}
	z[member] = score
	return nil
}

// ZRange 按分数降序返回 [start, stop]，同分按成员名升序；stop < 0 表示到末尾。
func (m *MemoryStore) ZRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.RLock()
	z := m.zsets[key]
	members := make([]string, 0, len(z))
	for member := range z {
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool {
		si, sj := z[members[i]], z[members[j]]
		if si != sj {
			return si > sj
		}
		return members[i] < members[j]
	})
	m.mu.RUnlock()

	n := int64(len(members))
	start = max(start, 0)
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	if start > stop {
		return nil, nil
	}
	return members[start : stop+1], nil
}

func (m *MemoryStore) ZScore(_ context.Context, key string, member string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	score, ok := m.zsets[key][member]
	if !ok {
		return 0, core.ErrKeyNotFound
	}
	return score, nil
}

func (m *MemoryStore) HSet(_ context.Context, key, field string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.hashes[key]
	if h == nil {
		h = make(map[string][]byte)
		m.hashes[key] = h
	}
	h[field] = value
	return nil
}

func (m *MemoryStore) HGet(_ context.Context, key, field string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.hashes[key][field]
	if !ok {
		return nil, core.ErrKeyNotFound
	}
	return v, nil
}

func (m *MemoryStore) HGetAll(_ context.Context, key string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]byte, len(m.hashes[key]))
	for f, v := range m.hashes[key] {
		out[f] = v
	}
	return out, nil
}

func (m *MemoryStore) Close() error {
	m.once.Do(func() {
		m.janitor.Stop()
		close(m.done)
	})
	return nil
}

func (m *MemoryStore) sweep() {
	for {
		select {
		case now := <-m.janitor.C:
			m.evictExpired(now)
		case <-m.done:
			return
		}
	}
}

func (m *MemoryStore) evictExpired(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.strs {
		if v.expired(now) {
			delete(m.strs, k)
		}
	}
}

var _ core.KeyValueStore = (*MemoryStore)(nil)
