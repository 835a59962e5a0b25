package config

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/rushteam/targetdb/core"
	"github.com/rushteam/targetdb/descriptor"
	"github.com/rushteam/targetdb/pipeline"
)

// 使用配置驱动时，需在 main 或入口处 import _ "github.com/rushteam/targetdb/config/builders"
// 以触发内置 Node（feature.extract、descriptor.build、rank.tractability、filter）的 init 注册。

// Deps 是构建 Node 时可用的依赖。Session 属于单个 worker，其余在 worker 间共享且只读。
type Deps struct {
	Session core.Session
	Model   core.TractabilityModel
	Schema  descriptor.Schema
	Logger  *zap.Logger
	// KV 可选，供 filter 读取排除列表
	KV core.KeyValueStore
}

// NodeBuilder 根据依赖与 config 构建 Node。
// 各组件在 init 中调用 Register(typeName, builder) 即可被配置驱动。
type NodeBuilder func(deps Deps, cfg map[string]interface{}) (pipeline.Node, error)

var (
	defaultBuilders   = make(map[string]NodeBuilder)
	defaultBuildersMu sync.RWMutex
)

// Register 注册一种 Node 的构建逻辑，供 DefaultFactory 与配置驱动使用。
func Register(typeName string, builder NodeBuilder) {
	if typeName == "" || builder == nil {
		return
	}
	defaultBuildersMu.Lock()
	defer defaultBuildersMu.Unlock()
	defaultBuilders[typeName] = builder
}

// SupportedTypes 返回当前已注册的 Node 类型列表（排序），用于错误提示与校验。
func SupportedTypes() []string {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	types := make([]string, 0, len(defaultBuilders))
	for t := range defaultBuilders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DefaultFactory 返回绑定了 deps 的 NodeFactory，包含所有通过 Register 注册的 Node 类型。
// 每个 worker 用自己的 Session 调用一次。
func DefaultFactory(deps Deps) *pipeline.NodeFactory {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	f := pipeline.NewNodeFactory()
	for typeName, builder := range defaultBuilders {
		f.Register(typeName, func(cfg map[string]interface{}) (pipeline.Node, error) {
			return builder(deps, cfg)
		})
	}
	return f
}

// ValidatePipelineConfig 校验 pipeline 配置中所有 node 类型均已注册；若有未支持类型则返回包含已支持列表的错误。
func ValidatePipelineConfig(cfg *pipeline.Config) error {
	if cfg == nil {
		return nil
	}
	supported := SupportedTypes()
	for _, nc := range cfg.Pipeline.Nodes {
		if nc.Type == "" {
			return fmt.Errorf("pipeline node without type")
		}
		defaultBuildersMu.RLock()
		_, ok := defaultBuilders[nc.Type]
		defaultBuildersMu.RUnlock()
		if !ok {
			return fmt.Errorf("unsupported node type %q (supported: %v)", nc.Type, supported)
		}
	}
	return nil
}
