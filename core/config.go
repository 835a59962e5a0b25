package core

import (
	"runtime"
	"time"
)

// BatchConfig 是批处理相关的配置接口，用于提供默认值。
type BatchConfig interface {
	// DefaultWorkers 返回默认的 worker 数
	DefaultWorkers() int

	// DefaultTargetTimeout 返回单靶点处理的默认超时时间（0 表示不限制）
	DefaultTargetTimeout() time.Duration
}

// DefaultBatchConfig 是默认的批处理配置实现。
type DefaultBatchConfig struct{}

func (c *DefaultBatchConfig) DefaultWorkers() int {
	return runtime.NumCPU()
}

func (c *DefaultBatchConfig) DefaultTargetTimeout() time.Duration {
	return 0
}
