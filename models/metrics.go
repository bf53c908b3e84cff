package models

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/trajtile/temporal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	kindLabel    = "kind"
	errTypeLabel = "error_type"
)

var (
	decodedTrajectories = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trajtile_decoded_trajectories",
		Help: "The number of trajectories decoded from requests.",
	}, []string{kindLabel})

	decodedInstants = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trajtile_decoded_instants",
		Help:    "The number of instants of the decoded trajectories.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	decodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trajtile_decode_errors",
		Help: "The number of trajectories that could not be decoded.",
	}, []string{errTypeLabel})
)

func instrumentDecode(temp temporal.Temporal) {
	var kind string
	switch v := temp.(type) {
	case temporal.Instant:
		kind = "instant"
	case temporal.Sequence:
		kind = v.Interp.String() + "_sequence"
	case temporal.SequenceSet:
		kind = v.Sequences[0].Interp.String() + "_sequence_set"
	}

	decodedTrajectories.
		With(prometheus.Labels{kindLabel: kind}).
		Inc()
	decodedInstants.Observe(float64(temp.NumInstants()))
}

func instrumentDecodeError(err error) {
	decodeErrors.
		With(prometheus.Labels{errTypeLabel: errors.Type(err)}).
		Inc()
}
