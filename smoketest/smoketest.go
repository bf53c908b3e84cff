package smoketest

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/trajtile/temporal"
	"github.com/aukilabs/trajtile/tile"
	"github.com/golang/geo/r1"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"

	ErrTypeUnexpectedResult = "unexpected_result"
)

type Options struct {
	Endpoint   string
	SendResult func(context.Context, Results) error
}

// Result is the outcome of a single check.
type Result struct {
	Name            string  `json:"name"`
	Status          string  `json:"status"`
	LatencyMilliSec float64 `json:"latency_ms"`
	Error           string  `json:"error,omitempty"`
}

// Results is the outcome of a smoke test run.
type Results struct {
	Endpoint        string   `json:"endpoint"`
	Status          string   `json:"status"`
	LatencyMilliSec float64  `json:"latency_ms"`
	Checks          []Result `json:"checks"`
}

type check struct {
	name string
	run  func() error
}

type testCtxKey string

var testCtxKeyValue testCtxKey = "test-context"

type testContext struct {
	context.Context
	Cancel func()
}

// HandleSmokeTest runs the engine checks in the background and reports the
// results with opts.SendResult.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			defer func() {
				// Signals the end of the run to tests.
				if tctx := ctx.Value(testCtxKeyValue); tctx != nil {
					testCtx := tctx.(testContext)
					if testCtx.Cancel != nil {
						testCtx.Cancel()
					}
				}
			}()

			res := Run(ctx, opts.Endpoint)
			if res.Status != StatusSuccess {
				logs.WithTag("endpoint", opts.Endpoint).
					WithTag("checks", res.Checks).
					Warn(errors.New("smoke test failed"))
			}

			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("endpoint", opts.Endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusAccepted)
	}
}

// Run runs the engine checks one after another. The run stops at the first
// check started after ctx is done.
func Run(ctx context.Context, endpoint string) Results {
	res := Results{
		Endpoint: endpoint,
		Status:   StatusSuccess,
	}

	start := time.Now()
	for _, c := range checks() {
		result := Result{
			Name:   c.name,
			Status: StatusSuccess,
		}

		err := ctx.Err()
		if err == nil {
			checkStart := time.Now()
			err = c.run()
			result.LatencyMilliSec = float64(time.Since(checkStart).Microseconds()) / 1000
		}

		if err != nil {
			result.Status = StatusFailed
			result.Error = err.Error()
			res.Status = StatusFailed
		}
		res.Checks = append(res.Checks, result)
	}

	res.LatencyMilliSec = float64(time.Since(start).Microseconds()) / 1000
	return res
}

func checks() []check {
	return []check{
		{name: "tile_list", run: checkTileList},
		{name: "split_single_tile", run: checkSplitSingleTile},
		{name: "split_crossing", run: checkSplitCrossing},
	}
}

// A 10x10 box over a 5x5 grid has four tiles.
func checkTileList() error {
	bounds := temporal.STBox{
		X:    r1.Interval{Lo: 0, Hi: 10},
		Y:    r1.Interval{Lo: 0, Hi: 10},
		HasX: true,
	}

	tiles, counts, err := tile.TileList(bounds, tile.Grid{XSize: 5, YSize: 5})
	if err != nil {
		return err
	}

	if len(tiles) != 4 || !slices.Equal(counts, []int{2, 2}) {
		return errors.New("unexpected tile list").
			WithType(ErrTypeUnexpectedResult).
			WithTag("tiles", len(tiles)).
			WithTag("counts", counts)
	}
	return nil
}

// A trajectory inside a single unit tile is returned whole.
func checkSplitSingleTile() error {
	seq, err := sequence(
		temporal.NewPoint(0.1, 0.1),
		temporal.NewPoint(0.9, 0.2),
		temporal.NewPoint(0.4, 0.8),
	)
	if err != nil {
		return err
	}

	sp, err := tile.SplitBySpace(seq, 1, 1, 0, temporal.Point{}, true)
	if err != nil {
		return err
	}

	fragments := sp.Collect()
	if len(fragments) != 1 || fragments[0].Index != 1 {
		return errors.New("unexpected fragments").
			WithType(ErrTypeUnexpectedResult).
			WithTag("fragments", len(fragments))
	}
	return nil
}

// An L shaped trajectory crosses seven unit tiles, with and without the bit
// matrix.
func checkSplitCrossing() error {
	seq, err := sequence(
		temporal.NewPoint(0, 0),
		temporal.NewPoint(3, 0),
		temporal.NewPoint(3, 3),
	)
	if err != nil {
		return err
	}

	expected := []int{1, 2, 3, 4, 8, 12, 16}

	for _, bitMatrix := range []bool{true, false} {
		sp, err := tile.SplitBySpace(seq, 1, 1, 0, temporal.Point{}, bitMatrix)
		if err != nil {
			return err
		}

		var indexes []int
		for f := range sp.All() {
			indexes = append(indexes, f.Index)
		}

		if !slices.Equal(indexes, expected) {
			return errors.New("unexpected fragment indexes").
				WithType(ErrTypeUnexpectedResult).
				WithTag("bit_matrix", bitMatrix).
				WithTag("indexes", indexes)
		}
	}
	return nil
}

func sequence(points ...temporal.Point) (temporal.Sequence, error) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	instants := make([]temporal.Instant, len(points))
	for i, p := range points {
		instants[i] = temporal.NewInstant(p, start.Add(time.Duration(i)*time.Minute))
	}
	return temporal.NewSequence(instants, temporal.Linear, true, true)
}
