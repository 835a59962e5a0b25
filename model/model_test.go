package model

import (
	"archive/zip"
	"bytes"
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rushteam/targetdb/core"
	"github.com/rushteam/targetdb/descriptor"
)

const twoRowJSON = `{
	"feature2": {"t1": 1, "t2": 0},
	"feature1": {"t1": false, "t2": true},
	"DRUGGABLE": {"t1": true, "t2": false}
}`

func TestReadTrainingSet(t *testing.T) {
	ts, err := ReadTrainingSet(strings.NewReader(twoRowJSON))
	if err != nil {
		t.Fatalf("ReadTrainingSet: %v", err)
	}
	if want := []string{"feature2", "feature1"}; !reflect.DeepEqual(ts.Columns, want) {
		t.Errorf("columns = %v, want %v", ts.Columns, want)
	}
	if want := []string{"t1", "t2"}; !reflect.DeepEqual(ts.IDs, want) {
		t.Errorf("ids = %v, want %v", ts.IDs, want)
	}
	if want := [][]float64{{1, 0}, {0, 1}}; !reflect.DeepEqual(ts.X, want) {
		t.Errorf("x = %v, want %v", ts.X, want)
	}
	if want := []int{1, 0}; !reflect.DeepEqual(ts.Y, want) {
		t.Errorf("y = %v, want %v", ts.Y, want)
	}
}

func TestReadTrainingSet_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"no label", `{"a": {"t1": 1}}`},
		{"not an object", `[1, 2]`},
		{"truncated", `{"a": {"t1": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadTrainingSet(strings.NewReader(tt.in)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestInTrainingSet(t *testing.T) {
	ts, err := ReadTrainingSet(strings.NewReader(twoRowJSON))
	if err != nil {
		t.Fatalf("ReadTrainingSet: %v", err)
	}
	got := ts.InTrainingSet([]string{"t1", "t3"})
	if want := []string{"Yes", "No"}; !reflect.DeepEqual(got, want) {
		t.Errorf("InTrainingSet = %v, want %v", got, want)
	}

	clf, err := Train(context.Background(), ts, smallParams(5))
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	got = clf.InTrainingSet([]string{"t3", "t2", "t1"})
	if want := []string{"No", "Yes", "Yes"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Classifier.InTrainingSet = %v, want %v", got, want)
	}
}

func TestLoadTrainingSet_Zip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ml_training_data_13_01_2020.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("ml_training_data_13_01_2020")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(twoRowJSON)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	ts, err := LoadTrainingSet(path)
	if err != nil {
		t.Fatalf("LoadTrainingSet: %v", err)
	}
	if ts.Len() != 2 || !ts.Contains("t2") {
		t.Errorf("unexpected training set: %+v", ts)
	}
}

func TestDefaultParams_Frozen(t *testing.T) {
	p := DefaultParams()
	if p.Trees != 1000 || p.MaxDepth != 21 || p.MaxFeatures != 3 ||
		p.MinSamplesLeaf != 2 || p.MinSamplesSplit != 5 || !p.Bootstrap {
		t.Errorf("default params changed: %+v", p)
	}
}

func smallParams(trees int) Params {
	p := DefaultParams()
	p.Trees = trees
	p.Workers = 4
	return p
}

// separable 生成按 x0 > 0.5 可分的数据集，x1 为噪声
func separable(n int) *TrainingSet {
	rng := rand.New(rand.NewPCG(1, 2))
	ids := make([]string, n)
	x := make([][]float64, n)
	y := make([]int, n)
	for i := range x {
		ids[i] = "t" + string(rune('a'+i%26)) + string(rune('a'+i/26))
		x[i] = []float64{rng.Float64(), rng.Float64()}
		if x[i][0] > 0.5 {
			y[i] = 1
		}
	}
	ts, _ := NewTrainingSet([]string{"signal", "noise"}, ids, x, y)
	return ts
}

func vec(id string, values ...float64) *core.Vector {
	return &core.Vector{TargetID: id, Columns: []string{"signal", "noise"}, Values: values}
}

func TestClassifier_Separable(t *testing.T) {
	clf, err := Train(context.Background(), separable(200), smallParams(50))
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	rows := []*core.Vector{vec("hi", 0.95, 0.5), vec("lo", 0.05, 0.5)}
	probs, err := clf.PredictProba(rows)
	if err != nil {
		t.Fatalf("PredictProba: %v", err)
	}
	if probs[0][1] < 0.8 {
		t.Errorf("p(druggable | signal=0.95) = %v, want >= 0.8", probs[0][1])
	}
	if probs[1][1] > 0.2 {
		t.Errorf("p(druggable | signal=0.05) = %v, want <= 0.2", probs[1][1])
	}
	for _, p := range probs {
		if s := p[0] + p[1]; s < 0.999999 || s > 1.000001 {
			t.Errorf("probabilities do not sum to 1: %v", p)
		}
	}
	labels, err := clf.Predict(rows)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if !reflect.DeepEqual(labels, []int{1, 0}) {
		t.Errorf("Predict = %v, want [1 0]", labels)
	}
}

func TestClassifier_Deterministic(t *testing.T) {
	ts := separable(120)
	a, err := Train(context.Background(), ts, smallParams(20))
	if err != nil {
		t.Fatal(err)
	}
	p := smallParams(20)
	p.Workers = 1
	b, err := Train(context.Background(), ts, p)
	if err != nil {
		t.Fatal(err)
	}
	rows := []*core.Vector{vec("x", 0.52, 0.1), vec("y", 0.48, 0.9), vec("z", 0.7, 0.3)}
	pa, _ := a.PredictProba(rows)
	pb, _ := b.PredictProba(rows)
	if !reflect.DeepEqual(pa, pb) {
		t.Errorf("training is not deterministic: %v vs %v", pa, pb)
	}
}

func TestClassifier_MaxDepth(t *testing.T) {
	p := smallParams(10)
	p.MaxDepth = 3
	clf, err := Train(context.Background(), separable(200), p)
	if err != nil {
		t.Fatal(err)
	}
	for i, tree := range clf.forest.Trees {
		if d := tree.Depth(); d > 3 {
			t.Errorf("tree %d depth %d exceeds 3", i, d)
		}
	}
}

func TestClassifier_SchemaMismatch(t *testing.T) {
	clf, err := Train(context.Background(), separable(50), smallParams(5))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		row  *core.Vector
	}{
		{"reordered", &core.Vector{Columns: []string{"noise", "signal"}, Values: []float64{0, 1}}},
		{"missing", &core.Vector{Columns: []string{"signal"}, Values: []float64{1}}},
		{"extra", &core.Vector{Columns: []string{"signal", "noise", "x"}, Values: []float64{1, 0, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := clf.PredictProba([]*core.Vector{tt.row})
			if !core.IsSchemaMismatch(err) {
				t.Errorf("PredictProba err = %v, want SCHEMA_MISMATCH", err)
			}
			if _, err := clf.Predict([]*core.Vector{tt.row}); !core.IsSchemaMismatch(err) {
				t.Errorf("Predict err = %v, want SCHEMA_MISMATCH", err)
			}
		})
	}

	if err := clf.CheckSchema(descriptor.DefaultSchema()); !core.IsSchemaMismatch(err) {
		t.Errorf("CheckSchema err = %v, want SCHEMA_MISMATCH", err)
	}
	if err := clf.CheckSchema(descriptor.NewSchema("test", []string{"signal", "noise"})); err != nil {
		t.Errorf("CheckSchema: %v", err)
	}
}

func TestClassifier_TwoRowTraining(t *testing.T) {
	ts, err := ReadTrainingSet(strings.NewReader(twoRowJSON))
	if err != nil {
		t.Fatal(err)
	}
	clf, err := Train(context.Background(), ts, smallParams(10))
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if want := []string{"feature2", "feature1"}; !reflect.DeepEqual(clf.FeatureColumns(), want) {
		t.Errorf("FeatureColumns = %v", clf.FeatureColumns())
	}
	rows := []*core.Vector{
		{TargetID: "t1", Columns: []string{"feature2", "feature1"}, Values: []float64{1, 0}},
		{TargetID: "t3", Columns: []string{"feature2", "feature1"}, Values: []float64{1, 1}},
	}
	preds, err := clf.Predict(rows)
	if err != nil || len(preds) != 2 {
		t.Fatalf("Predict = %v, %v", preds, err)
	}
	probs, err := clf.PredictProba(rows)
	if err != nil || len(probs) != 2 {
		t.Fatalf("PredictProba = %v, %v", probs, err)
	}
}

func TestClassifier_SaveLoad(t *testing.T) {
	clf, err := Train(context.Background(), separable(80), smallParams(8))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := clf.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rows := []*core.Vector{vec("a", 0.9, 0.1), vec("b", 0.2, 0.7)}
	want, _ := clf.PredictProba(rows)
	got, err := loaded.PredictProba(rows)
	if err != nil {
		t.Fatalf("PredictProba: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("loaded model predicts %v, want %v", got, want)
	}
	if !reflect.DeepEqual(loaded.FeatureColumns(), clf.FeatureColumns()) {
		t.Errorf("columns differ after load")
	}
	id := clf.InTrainingSet([]string{"taa"})
	if !reflect.DeepEqual(loaded.InTrainingSet([]string{"taa"}), id) {
		t.Errorf("membership differs after load")
	}
}

func TestClassifier_SaveFileReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	clf, err := Train(context.Background(), separable(40), smallParams(4))
	if err != nil {
		t.Fatal(err)
	}
	if err := clf.SaveFile(path); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	if _, err := LoadFile(path); err != nil {
		t.Errorf("LoadFile after replace: %v", err)
	}
	if left, _ := filepath.Glob(filepath.Join(dir, ".model-*")); len(left) != 0 {
		t.Errorf("temp files left behind: %v", left)
	}

	if err := clf.SaveFile(filepath.Join(dir, "missing", "model.json")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestLoad_Invalid(t *testing.T) {
	if _, err := Load(strings.NewReader(`{"columns":["a"],"forest":{"trees":[{"nodes":[{"f":3,"l":1,"r":2,"v":[0,0]}]}]}}`)); err == nil {
		t.Error("expected error for out-of-range split feature")
	}
	if _, err := Load(strings.NewReader(`not json`)); err == nil {
		t.Error("expected decode error")
	}
}

func TestTrain_Invalid(t *testing.T) {
	if _, err := Train(context.Background(), nil, DefaultParams()); err == nil {
		t.Error("expected error for nil training set")
	}
	p := smallParams(0)
	if _, err := Train(context.Background(), separable(10), p); err == nil {
		t.Error("expected error for zero trees")
	}
}
