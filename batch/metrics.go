package batch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rushteam/targetdb/pipeline"
)

// Metrics 是批处理的 Prometheus 指标。
type Metrics struct {
	targets   *prometheus.CounterVec
	runs      *prometheus.CounterVec
	nodeTime  *prometheus.HistogramVec
	inflight  prometheus.Gauge
	runTime   prometheus.Histogram
	shortlist prometheus.Gauge
}

// NewMetrics 创建并注册指标；reg 为 nil 时不注册（测试或不需要暴露时）。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		targets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "targetdb_targets_processed_total",
			Help: "Targets processed, by outcome (scored, failed)",
		}, []string{"outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "targetdb_runs_total",
			Help: "Batch runs, by outcome (ok, aborted)",
		}, []string{"outcome"}),
		nodeTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "targetdb_node_duration_seconds",
			Help:    "Time spent in each pipeline node per target",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}, []string{"node", "kind"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "targetdb_targets_inflight",
			Help: "Targets currently being processed",
		}),
		runTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "targetdb_run_duration_seconds",
			Help:    "Wall time of a batch run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
		shortlist: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "targetdb_shortlist_size",
			Help: "Targets that passed the shortlist filter in the last run",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.targets, m.runs, m.nodeTime, m.inflight, m.runTime, m.shortlist)
	}
	return m
}

// observer 返回记录 Node 耗时的 pipeline.Observer
func (m *Metrics) observer() pipeline.Observer {
	if m == nil {
		return nil
	}
	return func(node pipeline.Node, elapsed time.Duration, _ error) {
		m.nodeTime.WithLabelValues(node.Name(), string(node.Kind())).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) target(failed bool) {
	if m == nil {
		return
	}
	if failed {
		m.targets.WithLabelValues("failed").Inc()
	} else {
		m.targets.WithLabelValues("scored").Inc()
	}
}

func (m *Metrics) begin() {
	if m != nil {
		m.inflight.Inc()
	}
}

func (m *Metrics) end() {
	if m != nil {
		m.inflight.Dec()
	}
}

func (m *Metrics) run(elapsed time.Duration, err error, shortlist int) {
	if m == nil {
		return
	}
	m.runTime.Observe(elapsed.Seconds())
	if err != nil {
		m.runs.WithLabelValues("aborted").Inc()
		return
	}
	m.runs.WithLabelValues("ok").Inc()
	m.shortlist.Set(float64(shortlist))
}
