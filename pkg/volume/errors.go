package volume

import "github.com/pkg/errors"

// Error taxonomy shared by every toolkit package. Callers match with errors.Is;
// the packages wrap these with context via errors.Wrapf.
var (
	// ErrInvalidArgument reports a bad bin count, block size, level count,
	// range or dtype.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrShapeMismatch reports a mask whose geometry differs from its volume.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrEmptyMask reports a foreground with no voxels where one is required.
	ErrEmptyMask = errors.New("empty mask")

	// ErrDegenerateRange reports a zero-width range used as a divisor.
	ErrDegenerateRange = errors.New("degenerate range")

	// ErrInvalidBlockSize is a down-sampling factor below 1. It matches
	// ErrInvalidArgument as well.
	ErrInvalidBlockSize = errors.Wrap(ErrInvalidArgument, "invalid block size")
)
