package store

// 注意：此包只包含实现，接口定义在 core 包。
//   - 关系库（只读）：core.TargetStore / core.Session，由 SQLStore 实现（sqlite / postgres / duckdb）
//   - 结果落地（KV）：core.KeyValueStore，由 MemoryStore / RedisStore 实现
//
// 示例：
//   src, err := store.Open(ctx, store.DialectSQLite, "targetDB.db")
//   var kv core.KeyValueStore = store.NewMemoryStore()
