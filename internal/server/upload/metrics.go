package upload

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// attemptsTotal counts upload attempts by the state they ended in.
	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediakeeper_upload_attempts_total",
			Help: "Upload attempts by operation and terminal state",
		},
		[]string{"operation", "state"},
	)

	// deleteAttemptsTotal counts individual remote delete calls.
	deleteAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediakeeper_storage_delete_attempts_total",
			Help: "Remote delete calls by result",
		},
		[]string{"result"},
	)
)
