package unwrap

import (
	"errors"
	"fmt"
)

// ConfigurationError reports missing or invalid arguments.
type ConfigurationError struct {
	Err error
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigurationError{Err: fmt.Errorf(format, args...)}
}

func (e *ConfigurationError) Error() string { return "configuration error: " + e.Err.Error() }
func (e *ConfigurationError) Unwrap() error { return e.Err }

// AttachmentError reports that an image could not be set up as a loop device.
type AttachmentError struct {
	Image string
	Err   error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("failed to attach %s to a loop device: %v", e.Image, e.Err)
}
func (e *AttachmentError) Unwrap() error { return e.Err }

// MountError reports a partition that could not be mounted.
type MountError struct {
	Device string
	Target string
	Err    error
}

func (e *MountError) Error() string {
	return fmt.Sprintf("failed to mount %s on %s: %v", e.Device, e.Target, e.Err)
}
func (e *MountError) Unwrap() error { return e.Err }

// MissingPayloadError reports a flasher root partition without a payload image.
type MissingPayloadError struct {
	Directory string
}

func (e *MissingPayloadError) Error() string {
	return fmt.Sprintf("no payload image found in %s", e.Directory)
}

// ConversionError reports a failure of the image conversion utility.
type ConversionError struct {
	Err error
}

func (e *ConversionError) Error() string { return "image conversion failed: " + e.Err.Error() }
func (e *ConversionError) Unwrap() error { return e.Err }

// StageError wraps any failure of Run with the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("unwrap failed while %s: %v", e.Stage, e.Err)
}
func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage err was raised in, or StageFailed when err
// does not carry one.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return StageFailed
}
