package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StatsRecomputeTotal 全量重算批次数，按结果区分
	StatsRecomputeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookstats_recompute_total",
			Help: "Total number of book statistics recompute batches",
		},
		[]string{"result"},
	)

	// StatsRecomputeDuration 全量重算批次耗时
	StatsRecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bookstats_recompute_duration_seconds",
			Help:    "Duration of book statistics recompute batches in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// StatsIncrementalTotal 增量更新次数，按结果区分
	StatsIncrementalTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookstats_incremental_total",
			Help: "Total number of incremental book statistics updates",
		},
		[]string{"result"},
	)
)

// 指标结果标签
const (
	resultSuccess  = "success"
	resultError    = "error"
	resultBaseline = "baseline"
	resultRejected = "rejected"
)
