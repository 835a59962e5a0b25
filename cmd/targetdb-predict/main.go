package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/rushteam/targetdb/batch"
	"github.com/rushteam/targetdb/config"
	_ "github.com/rushteam/targetdb/config/builders"
	"github.com/rushteam/targetdb/core"
)

const topN = 10

func main() {
	app := &cli.App{
		Name:  "targetdb-predict",
		Usage: "score drug targets for tractability from a targetDB store",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file"},
			&cli.StringFlag{Name: "driver", Usage: "store driver: sqlite, postgres, duckdb"},
			&cli.StringFlag{Name: "dsn", Usage: "store DSN", EnvVars: []string{"TARGETDB_DSN"}},
			&cli.StringFlag{Name: "model", Usage: "model snapshot path"},
			&cli.StringFlag{Name: "training-data", Usage: "training data (.json or .zip)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn, error"},
		},
		Commands: []*cli.Command{
			{
				Name:   "predict",
				Usage:  "run the batch and write the prediction table",
				Action: predictAction,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "targets", Usage: "target ids (default: whole store)"},
					&cli.StringFlag{Name: "targets-file", Usage: "file with one target id per line"},
					&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "worker count"},
					&cli.StringFlag{Name: "shortlist", Usage: "CEL shortlist expression, e.g. 'item.probability >= 80.0'"},
					&cli.StringFlag{Name: "xlsx", Usage: "write predictions to this spreadsheet"},
					&cli.StringFlag{Name: "metrics-addr", Usage: "serve Prometheus metrics on this address"},
				},
			},
			{
				Name:   "train",
				Usage:  "train the classifier and save the snapshot to --model",
				Action: trainAction,
			},
			{
				Name:   "targets",
				Usage:  "list targets in the store",
				Action: targetsAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig 读取配置文件（可选）并用命令行参数覆盖
func loadConfig(c *cli.Context) (*config.Config, *zap.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.Parse(nil)
	}
	if err != nil {
		return nil, nil, err
	}

	override := func(dst *string, name string) {
		if v := c.String(name); v != "" {
			*dst = v
		}
	}
	override(&cfg.Store.Driver, "driver")
	override(&cfg.Store.DSN, "dsn")
	override(&cfg.Model.Path, "model")
	override(&cfg.Model.TrainingData, "training-data")
	override(&cfg.Log.Level, "log-level")

	if c.Command != nil && c.Command.Name == "predict" {
		if ids := c.StringSlice("targets"); len(ids) > 0 {
			cfg.Batch.Targets = splitIDs(ids)
		}
		override(&cfg.Batch.TargetsFile, "targets-file")
		override(&cfg.Output.XLSX, "xlsx")
		override(&cfg.Metrics.Addr, "metrics-addr")
		if w := c.Int("workers"); w > 0 {
			cfg.Batch.Workers = w
			cfg.Store.MaxOpenConns = w + 1
		}
		if s := c.String("shortlist"); s != "" {
			// 命令行表达式替换配置中的处理链
			cfg.Batch.Shortlist = s
			cfg.Pipeline.Nodes = nil
			cfg.Defaults()
		}
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func splitIDs(values []string) []string {
	var ids []string
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func predictAction(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := batch.NewMetrics(reg)
	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	st, err := cfg.Store.OpenStore(ctx, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	clf, err := cfg.Model.BuildModel(ctx, logger)
	if err != nil {
		return fmt.Errorf("build model: %w", err)
	}

	out, err := cfg.Output.Open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	source, err := cfg.Batch.Source()
	if err != nil {
		return err
	}

	runner := batch.NewRunner(st, clf,
		batch.WithLogger(logger),
		batch.WithMetrics(metrics),
		batch.WithTargetTimeout(cfg.Batch.TargetTimeout),
		batch.WithPipeline(cfg.PipelineBuilder(clf, out.KV)),
	)
	table, err := runner.Run(ctx, source, cfg.Batch.Workers)
	if err != nil {
		return err
	}

	if err := out.Writers.Write(ctx, table); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	top, err := out.Sink.Top(ctx, topN)
	if err != nil {
		return fmt.Errorf("read ranking: %w", err)
	}
	logger.Info("top ranked targets", zap.Strings("target_ids", top), zap.String("sink", out.Sink.Name()))
	printTable(table)
	return nil
}

func trainAction(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if cfg.Model.Path == "" || cfg.Model.TrainingData == "" {
		return errors.New("train requires --model and --training-data")
	}
	mc := cfg.Model
	mc.Save = true
	_, err = mc.Train(c.Context, logger)
	return err
}

func targetsAction(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	st, err := cfg.Store.OpenStore(c.Context, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	targets, err := st.ListTargets(c.Context)
	if err != nil {
		return err
	}
	for _, t := range targets {
		fmt.Printf("%s\t%s\n", t.ID, t.GeneName)
	}
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	return srv
}

func printTable(t *core.PredictionTable) {
	fmt.Println(strings.Join(core.PredictionColumns, "\t"))
	for _, r := range t.Rows {
		prob := fmt.Sprintf("%.2f", r.Probability)
		if r.Failed() {
			prob = ""
		}
		fmt.Printf("%s\t%s\t%s\t%s\t%t\t%s\n", r.TargetID, r.GeneName, prob, r.Tractable, r.InTrainingSet, r.FailureReason)
	}
	if t.Shortlist != nil {
		fmt.Printf("shortlist (%d): %s\n", len(t.Shortlist), strings.Join(t.Shortlist, ", "))
	}
}
