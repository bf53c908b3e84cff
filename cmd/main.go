package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/trajtile/featureflag"
	trajtilehttp "github.com/aukilabs/trajtile/http"
	"github.com/aukilabs/trajtile/smoketest"
	"github.com/aukilabs/trajtile/tile"
	twebsocket "github.com/aukilabs/trajtile/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The trajtile version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "trajtile_info",
		Help:        "Trajtile information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"TRAJTILE_ADDR"                   help:"Listening address for client requests."`
	AdminAddr          string        `cli:""        env:"TRAJTILE_ADMIN_ADDR"             help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"TRAJTILE_PUBLIC_ENDPOINT"        help:"The public endpoint where this server is reachable."`
	LogLevel           string        `cli:""        env:"TRAJTILE_LOG_LEVEL"              help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"TRAJTILE_LOG_INDENT"             help:"Indent logs."`
	BorderInclusive    bool          `cli:""        env:"TRAJTILE_BORDER_INCLUSIVE"       help:"Include the upper tile borders in the splits that don't set it."`
	MaxBitMatrixCells  int64         `cli:",hidden" env:"TRAJTILE_MAX_BIT_MATRIX_CELLS"   help:"The maximum number of cells of a bit matrix."`
	MaxTileListSize    int64         `cli:",hidden" env:"TRAJTILE_MAX_TILE_LIST_SIZE"     help:"The maximum number of tiles returned by a tile listing."`
	MaxSplitTiles      int64         `cli:",hidden" env:"TRAJTILE_MAX_SPLIT_TILES"        help:"The maximum number of tiles of a split grid."`
	MaxRequestSize     int64         `cli:",hidden" env:"TRAJTILE_MAX_REQUEST_SIZE"       help:"The maximum size of a request body in bytes."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"TRAJTILE_CLIENT_IDLE_TIMEOUT"    help:"Time until an idle stream client will be disconnected."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"TRAJTILE_LOG_SUMMARY_INTERVAL"   help:"The duration between each log summary by stream connection."`
	ShutdownTimeout    time.Duration `cli:",hidden" env:"TRAJTILE_SHUTDOWN_TIMEOUT"       help:"The time given to in flight requests to finish on shutdown."`
	Events             eventsConfig  `cli:",hidden" env:"-"                               help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"TRAJTILE_FEATURE_FLAGS"          help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                               help:"Show version."`
	Help               bool          `cli:""        env:"-"                               help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"TRAJTILE_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"TRAJTILE_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"TRAJTILE_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"TRAJTILE_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4100",
		AdminAddr:          ":18191",
		PublicEndpoint:     "http://localhost:4100",
		LogLevel:           logs.InfoLevel.String(),
		MaxBitMatrixCells:  tile.MaxBitMatrixCells,
		MaxTileListSize:    tile.MaxTileListSize,
		MaxSplitTiles:      tile.MaxSplitTiles,
		MaxRequestSize:     8 << 20,
		ClientIdleTimeout:  time.Minute * 5,
		LogSummaryInterval: time.Minute,
		ShutdownTimeout:    time.Second * 15,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the trajectory tiling server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "trajtile",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	tile.MaxBitMatrixCells = conf.MaxBitMatrixCells
	tile.MaxSplitTiles = conf.MaxSplitTiles
	tile.MaxTileListSize = conf.MaxTileListSize

	featureFlags := featureflag.New(conf.FeatureFlags)

	tiles := trajtilehttp.TileService{
		FeatureFlags:    featureFlags,
		BorderInclusive: conf.BorderInclusive,
		MaxRequestSize:  conf.MaxRequestSize,
	}

	var ready atomic.Bool
	readinessCheck := ready.Load

	var service http.ServeMux
	service.Handle("/health", trajtilehttp.HandleWithCORS(http.HandlerFunc(trajtilehttp.HandleHealthCheck)))
	service.Handle("/ready", trajtilehttp.HandleWithCORS(trajtilehttp.HandleReadyCheck(readinessCheck)))
	service.Handle("/version", trajtilehttp.HandleWithCORS(trajtilehttp.HandleVersion(version)))
	service.Handle("/tiles", trajtilehttp.HandleWithCORS(trajtilehttp.HandleMethod(http.MethodPost, tiles.HandleTiles)))
	service.Handle("/tile", trajtilehttp.HandleWithCORS(trajtilehttp.HandleMethod(http.MethodPost, tiles.HandleTile)))
	service.Handle("/split", trajtilehttp.HandleWithCORS(trajtilehttp.HandleMethod(http.MethodPost, tiles.HandleSplit)))

	featureFlags.IfNotSet(featureflag.FlagDisableBoxes, func() {
		service.Handle("/boxes", trajtilehttp.HandleWithCORS(trajtilehttp.HandleMethod(http.MethodPost, tiles.HandleBoxes)))
	})

	featureFlags.IfNotSet(featureflag.FlagDisableSplitStream, func() {
		service.Handle("/split/stream", websocket.Server{
			Handler: func(conn *websocket.Conn) {
				defer conn.Close()

				var h twebsocket.Handler = &twebsocket.SplitHandler{
					Splitter:          &tiles,
					ClientIdleTimeout: conf.ClientIdleTimeout,
					MaxMsgSize:        int(conf.MaxRequestSize),
				}
				h = twebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
				h = twebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
				defer h.Close()

				twebsocket.Handle(ctx, conn, h)
			},
		})
	})

	if featureFlags.IsSet(featureflag.FlagDisableSmokeTest) {
		ready.Store(true)
	} else {
		service.Handle("/smoke-test", trajtilehttp.HandleWithCORS(trajtilehttp.HandleMethod(http.MethodPost,
			smoketest.HandleSmokeTest(ctx, smoketest.Options{
				Endpoint:   conf.PublicEndpoint,
				SendResult: logSmokeTestResult,
			}))))

		go func() {
			if err := startupSmokeTest(ctx, conf.PublicEndpoint, &ready); err != nil {
				logs.Warn(errors.New("server is not ready").Wrap(err))
			}
		}()
	}

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", trajtilehttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", trajtilehttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("feature_flags", featureFlags.Strings()).
		Info("starting trajtile server")

	trajtilehttp.ListenAndServe(ctx, conf.ShutdownTimeout,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			trajtilehttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

// startupSmokeTest marks the server as ready once the smoke test succeeds.
func startupSmokeTest(ctx context.Context, endpoint string, ready *atomic.Bool) error {
	res := smoketest.Run(ctx, endpoint)
	if err := logSmokeTestResult(ctx, res); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return errors.New("smoke test interrupted").Wrap(err)
	}
	ready.Store(true)
	return nil
}

func logSmokeTestResult(_ context.Context, res smoketest.Results) error {
	if res.Status != smoketest.StatusSuccess {
		return errors.New("smoke test failed").
			WithTag("checks", res.Checks)
	}

	logs.WithTag("status", res.Status).
		WithTag("latency_ms", res.LatencyMilliSec).
		Info("smoke test completed")
	return nil
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.MaxBitMatrixCells <= 0 {
		return errors.New("max bit matrix cells must be positive").
			WithTag("max_bit_matrix_cells", conf.MaxBitMatrixCells)
	}

	if conf.MaxTileListSize <= 0 {
		return errors.New("max tile list size must be positive").
			WithTag("max_tile_list_size", conf.MaxTileListSize)
	}

	if conf.MaxSplitTiles <= 0 {
		return errors.New("max split tiles must be positive").
			WithTag("max_split_tiles", conf.MaxSplitTiles)
	}

	if conf.MaxRequestSize <= 0 {
		return errors.New("max request size must be positive").
			WithTag("max_request_size", conf.MaxRequestSize)
	}

	return nil
}
