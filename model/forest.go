package model

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Params 是随机森林的超参数。DefaultParams 的取值与列裁剪契约一起冻结，
// 批处理不允许在调用时调整；其余取值只用于测试。
type Params struct {
	Trees           int    `json:"n_estimators" yaml:"trees"`
	MaxDepth        int    `json:"max_depth" yaml:"max_depth"`
	MaxFeatures     int    `json:"max_features" yaml:"max_features"`
	MinSamplesLeaf  int    `json:"min_samples_leaf" yaml:"min_samples_leaf"`
	MinSamplesSplit int    `json:"min_samples_split" yaml:"min_samples_split"`
	Bootstrap       bool   `json:"bootstrap" yaml:"bootstrap"`
	Seed            uint64 `json:"seed" yaml:"seed"`
	// Workers 训练并发度（不影响结果），0 表示 runtime.NumCPU()
	Workers int `json:"-" yaml:"workers"`
}

// 冻结的超参数
const (
	DefaultTrees           = 1000
	DefaultMaxDepth        = 21
	DefaultMaxFeatures     = 3
	DefaultMinSamplesLeaf  = 2
	DefaultMinSamplesSplit = 5
	DefaultSeed            = 20200113
)

// DefaultParams 返回冻结的超参数
func DefaultParams() Params {
	return Params{
		Trees:           DefaultTrees,
		MaxDepth:        DefaultMaxDepth,
		MaxFeatures:     DefaultMaxFeatures,
		MinSamplesLeaf:  DefaultMinSamplesLeaf,
		MinSamplesSplit: DefaultMinSamplesSplit,
		Bootstrap:       true,
		Seed:            DefaultSeed,
	}
}

func (p Params) validate() error {
	switch {
	case p.Trees <= 0:
		return fmt.Errorf("model: trees must be positive, got %d", p.Trees)
	case p.MaxDepth <= 0:
		return fmt.Errorf("model: max depth must be positive, got %d", p.MaxDepth)
	case p.MaxFeatures <= 0:
		return fmt.Errorf("model: max features must be positive, got %d", p.MaxFeatures)
	case p.MinSamplesLeaf <= 0 || p.MinSamplesSplit < 2:
		return fmt.Errorf("model: invalid min samples leaf/split %d/%d", p.MinSamplesLeaf, p.MinSamplesSplit)
	}
	return nil
}

// Forest 是训练好的随机森林，训练后只读，可并发预测。
type Forest struct {
	Trees []*Tree `json:"trees"`
}

// fitForest 并行训练 Trees 棵树；每棵树的随机源由 (Seed, 树序号) 决定，
// 结果与调度顺序无关。
func fitForest(ctx context.Context, x [][]float64, y []int, p Params) (*Forest, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if len(x) == 0 {
		return nil, fmt.Errorf("model: empty training set")
	}
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	tp := p
	tp.MaxFeatures = min(p.MaxFeatures, len(x[0]))

	forest := &Forest{Trees: make([]*Tree, p.Trees)}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := 0; i < p.Trees; i++ {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(p.Seed, uint64(i)))
			forest.Trees[i] = growTree(x, y, sampleRows(len(x), p.Bootstrap, rng), tp, rng)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return forest, nil
}

func sampleRows(n int, bootstrap bool, rng *rand.Rand) []int {
	rows := make([]int, n)
	for i := range rows {
		if bootstrap {
			rows[i] = rng.IntN(n)
		} else {
			rows[i] = i
		}
	}
	return rows
}

// PredictProba 对各棵树的叶子分布取平均
func (f *Forest) PredictProba(x []float64) [2]float64 {
	var out [2]float64
	if len(f.Trees) == 0 {
		return out
	}
	for _, t := range f.Trees {
		p := t.PredictProba(x)
		out[0] += p[0]
		out[1] += p[1]
	}
	n := float64(len(f.Trees))
	out[0] /= n
	out[1] /= n
	return out
}
