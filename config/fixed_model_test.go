package config_test

import (
	"github.com/rushteam/targetdb/core"
	"github.com/rushteam/targetdb/descriptor"
)

// fixedModel 对所有靶点返回同一概率
type fixedModel struct {
	p float64
}

func (m *fixedModel) FeatureColumns() []string { return descriptor.ModelInputColumns }

func (m *fixedModel) Predict(rows []*core.Vector) ([]int, error) {
	out := make([]int, len(rows))
	if m.p > 0.5 {
		for i := range out {
			out[i] = 1
		}
	}
	return out, nil
}

func (m *fixedModel) PredictProba(rows []*core.Vector) ([][2]float64, error) {
	out := make([][2]float64, len(rows))
	for i := range out {
		out[i] = [2]float64{1 - m.p, m.p}
	}
	return out, nil
}

func (m *fixedModel) InTrainingSet(ids []string) []string {
	out := make([]string, len(ids))
	for i := range out {
		out[i] = core.MembershipNo
	}
	return out
}
