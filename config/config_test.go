package config_test

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rushteam/targetdb/batch"
	"github.com/rushteam/targetdb/config"
	_ "github.com/rushteam/targetdb/config/builders"
	"github.com/rushteam/targetdb/internal/testutil"
	"github.com/rushteam/targetdb/pipeline"
)

const sampleYAML = `
store:
  driver: postgres
  dsn: postgres://localhost/targetdb
model:
  path: /tmp/model.json
batch:
  workers: 3
  targets: [T1, T2]
  target_timeout: 30s
  shortlist: item.probability >= 80.0
output:
  xlsx: out.xlsx
log:
  level: debug
`

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Store.Driver != "postgres" || cfg.Store.MaxOpenConns != 4 {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Batch.Workers != 3 || cfg.Batch.TargetTimeout != 30*time.Second {
		t.Errorf("batch = %+v", cfg.Batch)
	}
	if cfg.Output.Redis.Prefix != "targetdb" {
		t.Errorf("redis prefix default = %q", cfg.Output.Redis.Prefix)
	}

	var types []string
	for _, n := range cfg.Pipeline.Nodes {
		types = append(types, n.Type)
	}
	want := []string{"feature.extract", "descriptor.build", "rank.tractability", "filter"}
	if !reflect.DeepEqual(types, want) {
		t.Errorf("nodes = %v, want %v", types, want)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	src, err := cfg.Batch.Source()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(src, batch.TargetList{"T1", "T2"}) {
		t.Errorf("source = %#v", src)
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := config.Load(filepath.Join("..", "configs", "targetdb.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if cfg.Batch.TargetTimeout != 2*time.Minute || cfg.Store.MaxOpenConns != 9 {
		t.Errorf("batch = %+v, store = %+v", cfg.Batch, cfg.Store)
	}
	if n := len(cfg.Pipeline.Nodes); n != 4 || cfg.Pipeline.Nodes[3].Type != "filter" {
		t.Errorf("nodes = %+v", cfg.Pipeline.Nodes)
	}

	st, _ := testutil.NewTargetDB(t)
	sess, err := st.Session(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()
	p, err := cfg.BuildPipeline(config.DefaultFactory(config.Deps{Session: sess, Model: &fixedModel{p: 0.9}}))
	if err != nil {
		t.Fatalf("BuildPipeline: %v", err)
	}
	want := []pipeline.Kind{pipeline.KindExtract, pipeline.KindDescribe, pipeline.KindClassify, pipeline.KindFilter}
	if !reflect.DeepEqual(p.Kinds(), want) {
		t.Errorf("kinds = %v", p.Kinds())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad driver", "store: {driver: oracle, dsn: x}\nmodel: {path: m.json}", "oracle"},
		{"no dsn", "model: {path: m.json}", "store.dsn"},
		{"no model", "store: {dsn: x}", "model.path"},
		{"save without path", "store: {dsn: x}\nmodel: {training_data: t.zip, save: true}", "model.save"},
		{"unknown node", "store: {dsn: x}\nmodel: {path: m.json}\npipeline: {nodes: [{type: rank.lr}]}", "rank.lr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestSupportedTypes(t *testing.T) {
	want := []string{"descriptor.build", "feature.extract", "filter", "rank.tractability"}
	if got := config.SupportedTypes(); !reflect.DeepEqual(got, want) {
		t.Errorf("SupportedTypes = %v, want %v", got, want)
	}
}

func TestBatchSource_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.txt")
	if err := os.WriteFile(path, []byte("# header\nT1\n\n  T2  \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := config.BatchConfig{TargetsFile: path}.Source()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(src, batch.TargetList{"T1", "T2"}) {
		t.Errorf("source = %#v", src)
	}

	src, err = config.BatchConfig{}.Source()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := src.(batch.AllTargets); !ok {
		t.Errorf("default source = %T, want AllTargets", src)
	}
}

func TestLogConfig_NewLogger(t *testing.T) {
	if _, err := (config.LogConfig{Level: "debug", Development: true}).NewLogger(); err != nil {
		t.Errorf("NewLogger: %v", err)
	}
	if _, err := (config.LogConfig{Level: "loud"}).NewLogger(); err == nil {
		t.Error("expected error for unknown level")
	}
}

// trainingJSON 只用于验证模型的训练、保存与加载流程
const trainingJSON = `{
	"a": {"t1": 1, "t2": 0, "t3": 1, "t4": 0, "t5": 1, "t6": 0},
	"DRUGGABLE": {"t1": true, "t2": false, "t3": true, "t4": false, "t5": true, "t6": false}
}`

func TestModelConfig_BuildModel(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "training.json")
	if err := os.WriteFile(data, []byte(trainingJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	mc := config.ModelConfig{
		Path:         filepath.Join(dir, "model.json"),
		TrainingData: data,
		Save:         true,
		Workers:      4,
	}
	ctx := context.Background()

	trained, err := mc.BuildModel(ctx, zap.NewNop())
	if err != nil {
		t.Fatalf("BuildModel (train): %v", err)
	}
	if _, err := os.Stat(mc.Path); err != nil {
		t.Fatalf("model not saved: %v", err)
	}
	if got := trained.InTrainingSet([]string{"t1", "x"}); !reflect.DeepEqual(got, []string{"Yes", "No"}) {
		t.Errorf("InTrainingSet = %v", got)
	}

	mc.TrainingData = ""
	loaded, err := mc.BuildModel(ctx, zap.NewNop())
	if err != nil {
		t.Fatalf("BuildModel (load): %v", err)
	}
	if !reflect.DeepEqual(loaded.FeatureColumns(), []string{"a"}) {
		t.Errorf("columns = %v", loaded.FeatureColumns())
	}

	if _, err := (config.ModelConfig{Path: filepath.Join(dir, "missing.json")}).BuildModel(ctx, zap.NewNop()); err == nil {
		t.Error("expected error for missing model without training data")
	}
}

func TestModelConfig_Train_KeepsModelOnFailure(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "training.json")
	if err := os.WriteFile(data, []byte(trainingJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	mc := config.ModelConfig{Path: filepath.Join(dir, "model.json"), TrainingData: data, Save: true}
	ctx := context.Background()
	if _, err := mc.Train(ctx, zap.NewNop()); err != nil {
		t.Fatalf("Train: %v", err)
	}
	before, err := os.ReadFile(mc.Path)
	if err != nil {
		t.Fatal(err)
	}

	broken := mc
	broken.TrainingData = filepath.Join(dir, "missing.json")
	if _, err := broken.Train(ctx, zap.NewNop()); err == nil {
		t.Fatal("expected error for missing training data")
	}
	after, err := os.ReadFile(mc.Path)
	if err != nil {
		t.Fatalf("model removed by failed retrain: %v", err)
	}
	if string(after) != string(before) {
		t.Error("model changed by failed retrain")
	}

	// 已有模型时 Train 仍然重新训练并替换
	if _, err := mc.Train(ctx, zap.NewNop()); err != nil {
		t.Fatalf("retrain: %v", err)
	}
	if _, err := mc.BuildModel(ctx, zap.NewNop()); err != nil {
		t.Errorf("load after retrain: %v", err)
	}
}

func TestPipelineBuilder(t *testing.T) {
	st, db := testutil.NewTargetDB(t)
	testutil.AddTarget(t, db, "T1", "GeneA")
	testutil.AddTarget(t, db, "T2", "GeneB")

	cfg, err := config.Parse([]byte("store: {dsn: x}\nmodel: {path: m.json}\nbatch: {shortlist: 'item.id == \"T2\"'}"))
	if err != nil {
		t.Fatal(err)
	}
	m := &fixedModel{p: 0.7}
	build := cfg.PipelineBuilder(m, nil)

	session, err := st.Session(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()
	p, err := build(session, zap.NewNop())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := []pipeline.Kind{pipeline.KindExtract, pipeline.KindDescribe, pipeline.KindClassify, pipeline.KindFilter}
	if !reflect.DeepEqual(p.Kinds(), want) {
		t.Errorf("kinds = %v, want %v", p.Kinds(), want)
	}

	table, err := batch.NewRunner(st, m, batch.WithPipeline(build)).Run(context.Background(), batch.AllTargets{}, 2)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if table.Len() != 2 || !reflect.DeepEqual(table.Shortlist, []string{"T2"}) {
		t.Errorf("table = %+v", table)
	}
}

func TestOutputConfig_Open_MemoryFallback(t *testing.T) {
	st, db := testutil.NewTargetDB(t)
	testutil.AddTarget(t, db, "T1", "GeneA")
	testutil.AddTarget(t, db, "T2", "GeneB")

	cfg, err := config.Parse([]byte(`
store: {dsn: x}
model: {path: m.json}
pipeline:
  nodes:
    - type: feature.extract
    - type: descriptor.build
    - type: rank.tractability
    - type: filter
      config:
        filters:
          - type: exclude
            key: targetdb:exclude
`))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	out, err := cfg.Output.Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer out.Close()
	if out.KV.Name() != "memory" || len(out.Writers) != 1 {
		t.Fatalf("kv = %s, writers = %d", out.KV.Name(), len(out.Writers))
	}
	if err := out.KV.Set(ctx, "targetdb:exclude", []byte(`["T1"]`)); err != nil {
		t.Fatal(err)
	}

	m := &fixedModel{p: 0.7}
	table, err := batch.NewRunner(st, m, batch.WithPipeline(cfg.PipelineBuilder(m, out.KV))).Run(ctx, batch.AllTargets{}, 2)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reflect.DeepEqual(table.Shortlist, []string{"T2"}) {
		t.Errorf("shortlist = %v, want [T2]", table.Shortlist)
	}

	if err := out.Writers.Write(ctx, table); err != nil {
		t.Fatalf("Write: %v", err)
	}
	top, err := out.Sink.Top(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(top, []string{"T1", "T2"}) {
		t.Errorf("top = %v", top)
	}
	p, err := out.Sink.Lookup(ctx, "T2")
	if err != nil || p.Probability != 70 {
		t.Errorf("lookup T2 = %+v, %v", p, err)
	}
}
