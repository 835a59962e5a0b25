package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/targetdb/batch"
	"github.com/rushteam/targetdb/core"
	"github.com/rushteam/targetdb/descriptor"
	"github.com/rushteam/targetdb/model"
	"github.com/rushteam/targetdb/pipeline"
	"github.com/rushteam/targetdb/report"
	"github.com/rushteam/targetdb/store"
)

// Config 是批处理的完整配置（YAML）。
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Model   ModelConfig   `yaml:"model"`
	Batch   BatchConfig   `yaml:"batch"`
	Output  OutputConfig  `yaml:"output"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`

	pipeline.Config `yaml:",inline"`
}

// StoreConfig 关系库配置
type StoreConfig struct {
	Driver       string `yaml:"driver"` // sqlite / postgres / duckdb
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// ModelConfig 模型来源：优先加载 Path，不存在时用 TrainingData 训练（可选写回 Path）。
type ModelConfig struct {
	Path         string `yaml:"path"`
	TrainingData string `yaml:"training_data"`
	Save         bool   `yaml:"save"`
	// Workers 训练并发度，不影响结果
	Workers int `yaml:"workers"`
}

// BatchConfig 批处理参数
type BatchConfig struct {
	Workers       int           `yaml:"workers"`
	Targets       []string      `yaml:"targets"`
	TargetsFile   string        `yaml:"targets_file"`
	TargetTimeout time.Duration `yaml:"target_timeout"`
	// Shortlist 候选清单表达式（CEL），为空表示不筛选
	Shortlist string `yaml:"shortlist"`
}

// OutputConfig 结果落地
type OutputConfig struct {
	XLSX  string      `yaml:"xlsx"`
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig Redis 落地配置，Addr 为空时落地到进程内 KV
type RedisConfig struct {
	Addr   string `yaml:"addr"`
	DB     int    `yaml:"db"`
	Prefix string `yaml:"prefix"`
	TTL    int    `yaml:"ttl"`
}

// MetricsConfig Prometheus 指标，Addr 为空表示不暴露
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Load 读取 YAML 配置并填充默认值。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Parse(data)
}

// Parse 解析 YAML 配置并填充默认值。
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	cfg.Defaults()
	return &cfg, nil
}

// Defaults 填充未配置的字段
func (c *Config) Defaults() {
	if c.Store.Driver == "" {
		c.Store.Driver = string(store.DialectSQLite)
	}
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = (&core.DefaultBatchConfig{}).DefaultWorkers()
	}
	if c.Store.MaxOpenConns <= 0 {
		// 每个 worker 独占一条连接，另留一条给靶点枚举
		c.Store.MaxOpenConns = c.Batch.Workers + 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Output.Redis.Prefix == "" {
		c.Output.Redis.Prefix = "targetdb"
	}
	if len(c.Pipeline.Nodes) == 0 {
		c.Pipeline.Nodes = pipeline.DefaultNodes()
		if c.Batch.Shortlist != "" {
			c.Pipeline.Nodes = append(c.Pipeline.Nodes, pipeline.NodeConfig{
				Type: "filter",
				Config: map[string]interface{}{
					"filters": []interface{}{
						map[string]interface{}{"type": "expr", "expr": c.Batch.Shortlist},
					},
				},
			})
		}
	}
	if c.Pipeline.Name == "" {
		c.Pipeline.Name = "tractability"
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	var errs []error
	if _, err := store.ParseDialect(c.Store.Driver); err != nil {
		errs = append(errs, err)
	}
	if c.Store.DSN == "" {
		errs = append(errs, errors.New("store.dsn is required"))
	}
	if c.Model.Path == "" && c.Model.TrainingData == "" {
		errs = append(errs, errors.New("one of model.path or model.training_data is required"))
	}
	if c.Model.Save && c.Model.Path == "" {
		errs = append(errs, errors.New("model.save requires model.path"))
	}
	if err := ValidatePipelineConfig(&c.Config); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// NewLogger 按配置构建 zap 日志
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// OpenStore 打开关系库
func (c StoreConfig) OpenStore(ctx context.Context, logger *zap.Logger) (*store.SQLStore, error) {
	dialect, err := store.ParseDialect(c.Driver)
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, dialect, c.DSN, store.WithLogger(logger), store.WithMaxOpenConns(c.MaxOpenConns))
}

// BuildModel 加载或训练模型（每次运行只执行一次）。失败对整批致命。
func (c ModelConfig) BuildModel(ctx context.Context, logger *zap.Logger) (*model.Classifier, error) {
	if c.Path != "" {
		clf, err := model.LoadFile(c.Path)
		if err == nil {
			logger.Info("model loaded", zap.String("path", c.Path), zap.Int("features", len(clf.FeatureColumns())))
			return clf, nil
		}
		if !core.IsNotFound(err) || c.TrainingData == "" {
			return nil, err
		}
	}
	return c.Train(ctx, logger)
}

// Train 用 TrainingData 重新训练；Save 时替换 Path 上的模型，训练或写入失败时旧模型保留。
func (c ModelConfig) Train(ctx context.Context, logger *zap.Logger) (*model.Classifier, error) {
	start := time.Now()
	ts, err := model.LoadTrainingSet(c.TrainingData)
	if err != nil {
		return nil, err
	}
	params := model.DefaultParams()
	params.Workers = c.Workers
	clf, err := model.Train(ctx, ts, params)
	if err != nil {
		return nil, err
	}
	logger.Info("model trained",
		zap.Int("rows", ts.Len()),
		zap.Int("features", len(ts.Columns)),
		zap.Duration("duration", time.Since(start)),
	)
	if c.Save && c.Path != "" {
		if err := clf.SaveFile(c.Path); err != nil {
			return nil, err
		}
		logger.Info("model saved", zap.String("path", c.Path))
	}
	return clf, nil
}

// Source 返回靶点来源：显式列表 > 列表文件 > 整个主靶点表
func (c BatchConfig) Source() (batch.Source, error) {
	if len(c.Targets) > 0 {
		return batch.TargetList(c.Targets), nil
	}
	if c.TargetsFile != "" {
		ids, err := readLines(c.TargetsFile)
		if err != nil {
			return nil, err
		}
		return batch.TargetList(ids), nil
	}
	return batch.AllTargets{}, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open targets file: %w", err)
	}
	defer f.Close()
	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}
	return ids, nil
}

// PipelineBuilder 返回按配置为每个 worker 构建处理链的函数。
func (c *Config) PipelineBuilder(m core.TractabilityModel, kv core.KeyValueStore) batch.PipelineBuilder {
	return func(session core.Session, logger *zap.Logger) (*pipeline.Pipeline, error) {
		factory := DefaultFactory(Deps{
			Session: session,
			Model:   m,
			Schema:  descriptor.DefaultSchema(),
			Logger:  logger,
			KV:      kv,
		})
		return c.BuildPipeline(factory)
	}
}

// Outputs 是一次运行的结果落地
type Outputs struct {
	Writers report.MultiWriter
	// KV 供 filter 读取排除列表，同时承载 Sink
	KV   core.KeyValueStore
	Sink *report.KVSink
}

// Close 释放 KV 连接
func (o *Outputs) Close() error {
	if o.KV == nil {
		return nil
	}
	return o.KV.Close()
}

// Open 按配置构建结果落地。Redis.Addr 为空时使用进程内 MemoryStore。
func (c OutputConfig) Open(ctx context.Context) (*Outputs, error) {
	var kv core.KeyValueStore
	if c.Redis.Addr == "" {
		kv = store.NewMemoryStore()
	} else {
		rs, err := store.NewRedisStore(ctx, c.Redis.Addr, c.Redis.DB)
		if err != nil {
			return nil, err
		}
		kv = rs
	}
	sink := report.NewKVSink(kv, c.Redis.Prefix)
	sink.TTL = c.Redis.TTL

	out := &Outputs{KV: kv, Sink: sink}
	if c.XLSX != "" {
		out.Writers = append(out.Writers, report.NewXLSXWriter(c.XLSX))
	}
	out.Writers = append(out.Writers, sink)
	return out, nil
}
