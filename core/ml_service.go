package core

// TractabilityModel 是成药性分类器的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由 model 包实现
//   - 模型训练一次后只读，可被多个 worker 并发调用
//   - 输入必须与训练特征列完全一致，否则返回 SCHEMA_MISMATCH，不做静默重排/截断
//
// 实现：
//   - model.Classifier（随机森林）
type TractabilityModel interface {
	// FeatureColumns 返回冻结的训练特征列（有序）
	FeatureColumns() []string

	// Predict 返回每行的预测类别（0 / 1）
	Predict(rows []*Vector) ([]int, error)

	// PredictProba 返回每行的 [p_class0, p_class1]
	PredictProba(rows []*Vector) ([][2]float64, error)

	// InTrainingSet 按调用方顺序返回 "Yes" / "No"
	InTrainingSet(ids []string) []string
}

// 训练集成员标记
const (
	MembershipYes = "Yes"
	MembershipNo  = "No"
)
