package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TasksSubmitted counts accepted submissions.
	// Labels: source (file/url)
	TasksSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lyricsync_tasks_submitted_total",
			Help: "Total number of transcription tasks accepted, by audio source",
		},
		[]string{"source"},
	)

	// TasksFinished counts tasks reaching a terminal state.
	// Labels: status (done/error)
	TasksFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lyricsync_tasks_finished_total",
			Help: "Total number of transcription tasks finished, by terminal status",
		},
		[]string{"status"},
	)

	// RunningTranscriptions is the number of whisper processes currently running.
	RunningTranscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lyricsync_running_transcriptions",
			Help: "Number of whisper processes currently running",
		},
	)

	TranscriptionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lyricsync_transcription_duration_seconds",
			Help:    "Wall time of whisper runs in seconds, by terminal status",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 3600},
		},
		[]string{"status"},
	)

	// ResultsBuilt counts composed results.
	// Labels: encoding (offsets/t-fields/timestamps), denominator (1000/100/1)
	ResultsBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lyricsync_results_built_total",
			Help: "Total number of word timelines built, by timestamp encoding and inferred denominator",
		},
		[]string{"encoding", "denominator"},
	)
)

func RecordSubmitted(source string) {
	TasksSubmitted.WithLabelValues(source).Inc()
}

func RecordFinished(status string, seconds float64) {
	TasksFinished.WithLabelValues(status).Inc()
	TranscriptionDuration.WithLabelValues(status).Observe(seconds)
}

func RecordResult(encoding string, denominator float64) {
	ResultsBuilt.WithLabelValues(encoding, strconv.FormatFloat(denominator, 'f', -1, 64)).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
