package featureflag

type Flag string

const (
	// Splits never use a bit matrix, whatever the request asks.
	FlagDisableBitMatrix Flag = "DISABLE_BIT_MATRIX"

	// The WebSocket split stream endpoint is not served.
	FlagDisableSplitStream Flag = "DISABLE_SPLIT_STREAM"

	// The boxes endpoint is not served.
	FlagDisableBoxes Flag = "DISABLE_BOXES"

	// The smoke test endpoint is not served and no smoke test runs at startup.
	FlagDisableSmokeTest Flag = "DISABLE_SMOKE_TEST"
)
