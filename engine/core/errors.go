package core

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
	ErrUnknown          = errors.New("unknown")

	// GPU call failed; device state is undefined afterwards.
	ErrDeviceFailure = errors.New("gpu device failure")
	ErrFenceTimeout  = errors.New("fence wait timed out")

	// Load-time failures, surfaced to whoever requested the asset.
	ErrTextureLoad = errors.New("texture load failed")
	ErrShaderLoad  = errors.New("shader load failed")

	// Broken invariants. These are always wrapped in an assertion failure.
	ErrUnsupportedTransition = errors.New("unsupported layout transition")
	ErrSlotInFlight          = errors.New("frame slot already submitted")
	ErrStaleTexture          = errors.New("texture id is stale or unknown")
)

// AssertionFailed marks err as a broken invariant. Callers are expected to abort.
func AssertionFailed(err error, format string, args ...interface{}) error {
	return errors.WithAssertionFailure(errors.Wrapf(err, format, args...))
}

// IsAssertionFailure reports whether err carries an assertion marker.
func IsAssertionFailure(err error) bool {
	return errors.HasAssertionFailure(err)
}
