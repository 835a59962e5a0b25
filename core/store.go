package core

import "context"

// TargetStore 是只读关系库的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（store）实现
//   - 只读：流水线从不修改源数据
//   - 每个 worker 通过 Session 获取独立连接，不共享可变连接
//
// 实现：
//   - store.SQLStore（sqlite / postgres / duckdb）
type TargetStore interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// ListTargets 枚举主靶点表中的全部靶点（Target_id + Gene_name）
	ListTargets(ctx context.Context) ([]Target, error)

	// Session 打开一个独立的会话（专用连接），由调用方负责 Close
	Session(ctx context.Context) (Session, error)

	// Ping 检查连通性
	Ping(ctx context.Context) error

	// Close 关闭连接池/释放资源
	Close() error
}

// Session 是单个 worker 独占的只读查询会话。
type Session interface {
	// Query 执行查询，columns 为输出列名（与 SELECT 顺序一致），返回规整后的行。
	Query(ctx context.Context, category string, query string, columns []string, args ...any) (*Table, error)

	Close() error
}

// Target 是主靶点表中的一行。
type Target struct {
	ID       string `json:"target_id" yaml:"target_id"`
	GeneName string `json:"gene_name" yaml:"gene_name"`
}

// KeyValueStore 是结果落地用的 KV 存储接口（内存 / Redis）。
//
// 使用场景：
//   - 哈希表（Hash）：每个靶点一条预测结果
//   - 有序集合（SortedSet）：按成药概率排序的候选清单
type KeyValueStore interface {
	Name() string

	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl ...int) error
	Delete(ctx context.Context, key string) error

	// ZAdd 向有序集合添加成员
	ZAdd(ctx context.Context, key string, score float64, member string) error
	// ZRange 按分数降序获取成员
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	// ZScore 获取成员的分数
	ZScore(ctx context.Context, key string, member string) (float64, error)

	HSet(ctx context.Context, key, field string, value []byte) error
	HGet(ctx context.Context, key, field string) ([]byte, error)
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)

	Close() error
}

// ErrKeyNotFound 表示 key 不存在
var ErrKeyNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")
