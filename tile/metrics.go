package tile

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	modeLabel    = "mode"
	errTypeLabel = "error_type"
)

var (
	splitCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trajtile_split_count",
		Help: "The number of trajectory splits.",
	}, []string{modeLabel})

	splitErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trajtile_split_errors",
		Help: "The errors that occured while starting a split.",
	}, []string{modeLabel, errTypeLabel})

	splitFragments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trajtile_split_fragments",
		Help: "The number of fragments produced by splits.",
	}, []string{modeLabel})

	splitSkippedTiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trajtile_split_skipped_tiles",
		Help: "The number of visited tiles where the trajectory restriction was empty.",
	}, []string{modeLabel})

	splitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "trajtile_split_duration",
		Help: "The time between the start and the release of a split.",
	}, []string{modeLabel})

	bitMatrixCells = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trajtile_bit_matrix_cells",
		Help:    "The number of cells of the bit matrices built by splits.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 16),
	})

	bitMatrixMarkedRatio = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trajtile_bit_matrix_marked_ratio",
		Help:    "The ratio of cells set in the bit matrices built by splits.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 10, 5),
	})

	tileListTiles = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trajtile_tile_list_tiles",
		Help:    "The number of tiles returned by tile lists.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 12),
	})
)

func instrumentSplit(mode string) {
	splitCount.With(prometheus.Labels{modeLabel: mode}).Inc()
}

func instrumentSplitError(mode string, err error) {
	splitErrors.
		With(prometheus.Labels{
			modeLabel:    mode,
			errTypeLabel: errors.Type(err),
		}).
		Inc()
}

func instrumentSplitDone(mode string, start time.Time, fragments, skipped int) {
	labels := prometheus.Labels{modeLabel: mode}
	splitFragments.With(labels).Add(float64(fragments))
	splitSkippedTiles.With(labels).Add(float64(skipped))
	splitDuration.With(labels).Observe(time.Since(start).Seconds())
}

func instrumentBitMatrix(cells, marked int) {
	bitMatrixCells.Observe(float64(cells))
	if cells > 0 {
		bitMatrixMarkedRatio.Observe(float64(marked) / float64(cells))
	}
}

func instrumentTileList(tiles int) {
	tileListTiles.Observe(float64(tiles))
}
