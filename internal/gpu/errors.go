package gpu

import (
	"codeberg.org/mutker/hwsnap/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const (
	// Initialization and Lifecycle Errors
	ErrNotInitialized  = errors.ErrorCode("gpu_not_initialized")
	ErrInitFailed      = errors.ErrorCode("gpu_init_failed")
	ErrLibraryNotFound = errors.ErrorCode("gpu_library_not_found")
	ErrNoPermission    = errors.ErrorCode("gpu_no_permission")
	ErrShutdownFailed  = errors.ErrorCode("gpu_shutdown_failed")

	// Device Discovery Errors
	ErrDeviceCountFailed = errors.ErrorCode("gpu_device_count_failed")
	ErrDeviceNotFound    = errors.ErrorCode("gpu_device_not_found")
)

// nvmlError represents an NVML-specific error
type nvmlError struct {
	ret nvml.Return
}

func (e nvmlError) Error() string {
	if e.ret == nvml.ERROR_LIBRARY_NOT_FOUND {
		return "NVML library not found"
	}
	return nvml.ErrorString(e.ret)
}

// newNVMLError creates an error from an NVML return code
func newNVMLError(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	return &nvmlError{ret: ret}
}

// IsNVMLSuccess checks if a Return value indicates success
func IsNVMLSuccess(ret nvml.Return) bool {
	return ret == nvml.SUCCESS
}

// initErrorCode maps an nvml.Init failure to an error code.
func initErrorCode(ret nvml.Return) errors.ErrorCode {
	switch ret {
	case nvml.ERROR_LIBRARY_NOT_FOUND, nvml.ERROR_DRIVER_NOT_LOADED, nvml.ERROR_NOT_FOUND:
		return ErrLibraryNotFound
	case nvml.ERROR_NO_PERMISSION:
		return ErrNoPermission
	default:
		return ErrInitFailed
	}
}
