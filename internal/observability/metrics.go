package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "qc",
		Name:      "frames_processed_total",
		Help:      "Total number of frames pulled from the frame source",
	})

	ObjectsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "qc",
		Name:      "objects_detected_total",
		Help:      "Total number of candidate contours passed to the QC evaluators",
	})

	VerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qc",
		Name:      "verdicts_total",
		Help:      "Total QC verdicts by pass/fail and reason",
	}, []string{"pass", "reason"})

	EvaluatorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "qc",
		Name:      "evaluator_duration_seconds",
		Help:      "Duration of each QC evaluation stage",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 10),
	}, []string{"stage"})

	BatchesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "qc",
		Name:      "batches_published_total",
		Help:      "Total number of batches published to the dispatch queue",
	})

	BatchesDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "qc",
		Name:      "batches_dispatched_total",
		Help:      "Total number of batches fully dispatched to the robot controller",
	})

	BatchesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qc",
		Name:      "batches_rejected_total",
		Help:      "Total number of batches rejected by the dispatch queue",
	}, []string{"reason"})

	CommandsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "qc",
		Name:      "commands_sent_total",
		Help:      "Total number of individual commands sent to the robot controller",
	})

	CommandsReenqueued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "qc",
		Name:      "commands_reenqueued_total",
		Help:      "Total number of commands re-enqueued after a send failure",
	})

	LinkReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "qc",
		Name:      "robot_link_reconnects_total",
		Help:      "Total number of TCP reconnect attempts to the robot controller",
	})

	LinkState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "qc",
		Name:      "robot_link_state",
		Help:      "Current robot link state (0=disconnected, 1=connecting, 2=connected)",
	})

	DispatchState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "qc",
		Name:      "dispatch_state",
		Help:      "Current dispatch state machine state (0=idle, 1=armed, 2=in_flight, 3=completing)",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "qc",
		Name:      "batch_queue_depth",
		Help:      "Number of commands still queued in the active dispatch batch",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "qc",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "qc",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
