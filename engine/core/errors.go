package core

import (
	"errors"
)

var (
	ErrSwapchainBooting   = errors.New("swapchain resized or recreated, booting")
	ErrSwapchainOutOfDate = errors.New("swapchain out of date")
	ErrDeviceLost         = errors.New("device lost")
	ErrFenceTimeout       = errors.New("fence wait timed out")
	ErrShaderInvalid      = errors.New("invalid shader module")
	ErrIncompatibleLayout = errors.New("incompatible pipeline layout")
	ErrIncompatibleUsage  = errors.New("resource used with an incompatible usage")
	ErrResourceDestroyed  = errors.New("resource already destroyed")
	ErrNoSuitableDevice   = errors.New("no suitable physical device")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrUnknown            = errors.New("unknown")
)

// IsRecoverable reports whether err only invalidates the current frame.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrSwapchainOutOfDate) || errors.Is(err, ErrSwapchainBooting)
}
