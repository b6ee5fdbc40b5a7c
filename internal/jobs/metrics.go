package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	JobsQueuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wallpaper_jobs_queued_total",
		Help: "Total number of wallpaper jobs queued",
	})
	JobsRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wallpaper_jobs_rejected_total",
		Help: "Total number of wallpaper requests rejected because the queue was full",
	})
	JobsInProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wallpaper_jobs_in_progress",
		Help: "Number of wallpaper jobs currently rendering",
	})
	JobsCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wallpaper_jobs_completed_total",
		Help: "Total number of wallpaper jobs completed successfully",
	})
	JobsFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wallpaper_jobs_failed_total",
		Help: "Total number of wallpaper jobs failed",
	})
	JobsFallbackTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wallpaper_jobs_fallback_total",
		Help: "Total number of wallpaper jobs completed with the placeholder image",
	})
	JobsKnown = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wallpaper_jobs_known",
		Help: "Number of jobs held in the job store",
	})
	RenderDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wallpaper_render_duration_seconds",
		Help:    "Time spent rendering and storing one wallpaper",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(
		JobsQueuedTotal,
		JobsRejectedTotal,
		JobsInProgress,
		JobsCompletedTotal,
		JobsFailedTotal,
		JobsFallbackTotal,
		JobsKnown,
		RenderDuration,
	)
}
