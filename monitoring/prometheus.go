package monitoring

import (
	"net/http"
	"sync"
	"time"

	"zchain/logx"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerFailureReason string

var (
	WorkerRangeExhausted WorkerFailureReason = "range_exhausted"
	WorkerNonceError     WorkerFailureReason = "nonce_error"
	WorkerPanicked       WorkerFailureReason = "panic"
)

type minerPromMetrics struct {
	minerUpUnixSeconds prometheus.Gauge
	hashesComputed     *prometheus.CounterVec
	blocksMined        prometheus.Counter
	miningDuration     prometheus.Histogram
	workerFailures     *prometheus.CounterVec
	commitRejected     prometheus.Counter
	chainHeight        prometheus.Gauge
	panicCount         prometheus.Counter
}

func newMinerPromMetrics() *minerPromMetrics {
	return &minerPromMetrics{
		minerUpUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "zchain_miner_up_timestamp_unix_seconds",
				Help: "Unix timestamp of the miner process",
			},
		),
		hashesComputed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zchain_miner_hashes_computed_total",
				Help: "The total number of candidate hashes computed by search workers",
			},
			[]string{"strategy"},
		),
		blocksMined: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "zchain_miner_blocks_mined_total",
				Help: "The total number of blocks committed as mined",
			},
		),
		miningDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "zchain_miner_mining_duration_seconds",
				Help:    "Duration in second between begin of mining and commit of the winning nonce",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		workerFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zchain_miner_worker_failures_total",
				Help: "The total number of search workers that stopped without a result",
			},
			[]string{"reason"},
		),
		commitRejected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "zchain_miner_commit_rejected_total",
				Help: "The total number of winning results rejected by the block on commit",
			},
		),
		chainHeight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "zchain_chain_height",
				Help: "Height of the current chain tip",
			},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "zchain_panic_count_total",
				Help: "The total number of recovered goroutine panics",
			},
		),
	}
}

var (
	minerMetrics *minerPromMetrics
	initOnce     sync.Once
)

// InitMetrics registers the collectors once; every recorder calls it lazily.
func InitMetrics() {
	initOnce.Do(func() {
		minerMetrics = newMinerPromMetrics()
		minerMetrics.minerUpUnixSeconds.SetToCurrentTime()
	})
}

func metrics() *minerPromMetrics {
	InitMetrics()
	return minerMetrics
}

func RegisterMetrics(mux *http.ServeMux) {
	logx.Info("MONITORING", "Registering prometheus metrics")
	mux.Handle("/metrics", promhttp.Handler())
}

func AddHashesComputed(strategy string, n int64) {
	if n <= 0 {
		return
	}
	metrics().hashesComputed.With(prometheus.Labels{
		"strategy": strategy,
	}).Add(float64(n))
}

func IncreaseBlocksMined() {
	metrics().blocksMined.Inc()
}

func RecordMiningDuration(duration time.Duration) {
	metrics().miningDuration.Observe(duration.Seconds())
}

func RecordWorkerFailure(reason WorkerFailureReason) {
	metrics().workerFailures.With(prometheus.Labels{
		"reason": string(reason),
	}).Inc()
}

func IncreaseCommitRejected() {
	metrics().commitRejected.Inc()
}

func SetChainHeight(height uint64) {
	metrics().chainHeight.Set(float64(height))
}

func IncreasePanicCount() {
	metrics().panicCount.Inc()
}
