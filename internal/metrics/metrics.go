package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricsEndpoint = "0.0.0.0:9090"
)

var (
	UpdateRunCounter *prometheus.CounterVec

	UpdateRunTimeSummary *prometheus.SummaryVec

	MediaPrepareRunTimeSummary *prometheus.SummaryVec

	UtilityExitCounter *prometheus.CounterVec
)

func init() {
	UpdateRunCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sumflash_update_runs",
			Help: "A counter metric to measure the total count of update runs, successful and failed",
		},
		[]string{"state"},
	)

	UpdateRunTimeSummary = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "sumflash_update_run_duration_seconds",
			Help: "A summary metric to measure the total time spent in completing each update run",
		},
		[]string{"state"},
	)

	MediaPrepareRunTimeSummary = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "sumflash_media_prepare_duration_seconds",
			Help: "A summary metric to measure the time spent preparing the virtual media device",
		},
		[]string{"state"},
	)

	UtilityExitCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sumflash_utility_exits",
			Help: "A counter metric to measure SUM utility exits by classification",
		},
		[]string{"classified"},
	)
}

// ListenAndServe exposes prometheus metrics as /metrics
func ListenAndServe() {
	go func() {
		http.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              MetricsEndpoint,
			ReadHeaderTimeout: 2 * time.Second, // nolint:gomnd // time duration value is clear as is.
		}

		if err := server.ListenAndServe(); err != nil {
			log.Println(err)
		}
	}()
}
