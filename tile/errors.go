package tile

const (
	// Returned when a grid, a bit matrix or a split is requested with
	// arguments that can't describe a valid grid.
	ErrTypeInvalidArgument = "invalid_argument"

	// Returned when a cell index falls outside a bit matrix. This only happens
	// when a bit matrix is used with a grid it was not built for.
	ErrTypeOutOfRange = "out_of_range"

	// Returned when a bit matrix or a tile list would exceed the configured
	// size limits.
	ErrTypeAllocationFailure = "allocation_failure"
)
