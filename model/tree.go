package model

import (
	"math/rand/v2"
	"sort"
)

// TreeNode 是扁平存储的二叉决策树节点。叶子节点 Feature = -1。
type TreeNode struct {
	Feature   int        `json:"f"`
	Threshold float64    `json:"t,omitempty"`
	Left      int        `json:"l,omitempty"`
	Right     int        `json:"r,omitempty"`
	Value     [2]float64 `json:"v"` // 叶子节点的类别分布 [p0, p1]
}

// Tree 是一棵 CART 分类树（gini 不纯度，二分类）。
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

func (t *Tree) leaf(x []float64) *TreeNode {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// PredictProba 返回样本所在叶子的类别分布
func (t *Tree) PredictProba(x []float64) [2]float64 {
	return t.leaf(x).Value
}

// Depth 返回树深度（根为 0）
func (t *Tree) Depth() int {
	var walk func(i, d int) int
	walk = func(i, d int) int {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return d
		}
		return max(walk(n.Left, d+1), walk(n.Right, d+1))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0, 0)
}

// treeBuilder 持有单棵树训练期间的可变状态，不跨 goroutine 共享。
type treeBuilder struct {
	x      [][]float64
	y      []int
	params Params
	rng    *rand.Rand
	tree   *Tree
}

func growTree(x [][]float64, y []int, samples []int, params Params, rng *rand.Rand) *Tree {
	b := &treeBuilder{x: x, y: y, params: params, rng: rng, tree: &Tree{}}
	b.grow(samples, 0)
	return b.tree
}

func classCounts(y []int, samples []int) (n0, n1 float64) {
	for _, s := range samples {
		if y[s] == 1 {
			n1++
		} else {
			n0++
		}
	}
	return n0, n1
}

func gini(n0, n1 float64) float64 {
	n := n0 + n1
	if n == 0 {
		return 0
	}
	p0, p1 := n0/n, n1/n
	return 1 - p0*p0 - p1*p1
}

func (b *treeBuilder) grow(samples []int, depth int) int {
	idx := len(b.tree.Nodes)
	n0, n1 := classCounts(b.y, samples)
	total := n0 + n1
	b.tree.Nodes = append(b.tree.Nodes, TreeNode{Feature: -1, Value: [2]float64{n0 / total, n1 / total}})

	if depth >= b.params.MaxDepth ||
		len(samples) < b.params.MinSamplesSplit ||
		len(samples) < 2*b.params.MinSamplesLeaf ||
		n0 == 0 || n1 == 0 {
		return idx
	}

	feature, threshold, ok := b.bestSplit(samples, n0, n1)
	if !ok {
		return idx
	}

	var left, right []int
	for _, s := range samples {
		if b.x[s][feature] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	n := &b.tree.Nodes[idx]
	n.Feature, n.Threshold, n.Left, n.Right = feature, threshold, l, r
	return idx
}

// bestSplit 随机抽取特征寻找最优切分：至少检查 MaxFeatures 个非常量特征，
// 若其中没有合法切分则继续检查剩余特征。
func (b *treeBuilder) bestSplit(samples []int, n0, n1 float64) (int, float64, bool) {
	nFeatures := len(b.x[0])
	order := b.rng.Perm(nFeatures)

	var (
		bestFeature   = -1
		bestThreshold float64
		bestImpurity  = gini(n0, n1) + 1e-12
		visited       int
	)
	sorted := make([]int, len(samples))
	for _, f := range order {
		if visited >= b.params.MaxFeatures && bestFeature >= 0 {
			break
		}
		copy(sorted, samples)
		sort.SliceStable(sorted, func(i, j int) bool { return b.x[sorted[i]][f] < b.x[sorted[j]][f] })
		if b.x[sorted[0]][f] == b.x[sorted[len(sorted)-1]][f] {
			continue
		}
		visited++

		var l0, l1 float64
		total := float64(len(sorted))
		for i := 0; i < len(sorted)-1; i++ {
			if b.y[sorted[i]] == 1 {
				l1++
			} else {
				l0++
			}
			cur, next := b.x[sorted[i]][f], b.x[sorted[i+1]][f]
			if cur == next {
				continue
			}
			nl := float64(i + 1)
			nr := total - nl
			if int(nl) < b.params.MinSamplesLeaf || int(nr) < b.params.MinSamplesLeaf {
				continue
			}
			impurity := (nl*gini(l0, l1) + nr*gini(n0-l0, n1-l1)) / total
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = f
				bestThreshold = cur + (next-cur)/2
				if bestThreshold == next {
					bestThreshold = cur
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}
