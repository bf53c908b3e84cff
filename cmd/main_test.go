package main

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/aukilabs/trajtile/smoketest"
	"github.com/aukilabs/trajtile/tile"
	"github.com/stretchr/testify/require"
)

func TestStartupSmokeTest(t *testing.T) {
	t.Run("success marks ready", func(t *testing.T) {
		var ready atomic.Bool
		err := startupSmokeTest(context.Background(), "http://localtrajtile", &ready)
		require.NoError(t, err)
		require.True(t, ready.Load())
	})

	t.Run("canceled context keeps not ready", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var ready atomic.Bool
		err := startupSmokeTest(ctx, "http://localtrajtile", &ready)
		require.Error(t, err)
		require.False(t, ready.Load())
	})
}

func TestLogSmokeTestResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := logSmokeTestResult(ctx, smoketest.Results{Status: smoketest.StatusFailed})
	require.Error(t, err)

	err = logSmokeTestResult(context.Background(), smoketest.Results{Status: smoketest.StatusSuccess})
	require.NoError(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := func() config {
		return config{
			PublicEndpoint:    "http://localhost:4100",
			MaxBitMatrixCells: tile.MaxBitMatrixCells,
			MaxTileListSize:   tile.MaxTileListSize,
			MaxSplitTiles:     tile.MaxSplitTiles,
			MaxRequestSize:    1 << 20,
		}
	}

	require.NoError(t, validateConfig(valid()))

	tests := []struct {
		name   string
		update func(*config)
	}{
		{
			name:   "invalid public endpoint",
			update: func(c *config) { c.PublicEndpoint = "localhost" },
		},
		{
			name:   "max bit matrix cells",
			update: func(c *config) { c.MaxBitMatrixCells = 0 },
		},
		{
			name:   "max tile list size",
			update: func(c *config) { c.MaxTileListSize = -1 },
		},
		{
			name:   "max split tiles",
			update: func(c *config) { c.MaxSplitTiles = 0 },
		},
		{
			name:   "max request size",
			update: func(c *config) { c.MaxRequestSize = 0 },
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			conf := valid()
			test.update(&conf)
			require.Error(t, validateConfig(conf))
		})
	}
}
