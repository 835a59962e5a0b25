package core

import "context"

// FeatureExtractor 是特征抽取的领域接口。
//
// 实现：
//   - feature.Extractor 实现此接口（基于 Session 的关系库查询）
//
// 未知靶点返回全空的特征表而不是错误，以便下游按中性值降级。
type FeatureExtractor interface {
	// Extract 抽取单个靶点的全部类别特征表
	Extract(ctx context.Context, targetID string) (FeatureSet, error)

	// ExtractBatch 批量抽取（bulk 模式）
	ExtractBatch(ctx context.Context, targetIDs []string) (map[string]FeatureSet, error)
}
