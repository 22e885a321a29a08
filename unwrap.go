// Package unwrap extracts the payload image embedded in a resin flasher image,
// carries the flasher boot configuration over into it and optionally converts
// it to a virtual machine disk format.
package unwrap

import (
	"context"
	"fmt"
	"os"

	"github.com/docker/go-units"
)

// Unwrapper runs the unwrap pipeline against a System.
type Unwrapper struct {
	system    System
	converter Converter
	stage     Stage
}

func New(system System, runner Runner) *Unwrapper {
	return &Unwrapper{
		system:    system,
		converter: Converter{Runner: runner},
	}
}

// Stage reports the stage the last run is in, or ended in.
func (u *Unwrapper) Stage() Stage {
	return u.stage
}

func (u *Unwrapper) enter(ctx context.Context, stage Stage) error {
	u.stage = stage
	Logf("==== %s ====", stage)
	return ctx.Err()
}

// Run extracts the payload of cfg.FlasherImage. All loop devices and mounts
// acquired are released before Run returns, whatever the outcome. The
// returned path is the final output image.
func (u *Unwrapper) Run(ctx context.Context, cfg Config) (string, error) {
	u.stage = StageValidating

	scope := &Scope{}
	image, err := u.extract(ctx, cfg, scope)
	failedAt := u.stage

	u.stage = StageFinalizing
	Logf("==== %s ====", u.stage)

	if err != nil && cfg.DebugShell != "" {
		DebugShell(cfg.DebugShell, cfg.WorkDirectory)
	}

	scope.Close()

	if err == nil && cfg.Format != FormatNone {
		image, err = u.converter.Convert(ctx, image, cfg.Format, cfg.ImageSize)
		if err != nil {
			failedAt = StageFinalizing
		}
	}

	RestoreOwner(u.system, cfg, image)

	if err != nil {
		u.stage = StageFailed
		return image, &StageError{Stage: failedAt, Err: err}
	}

	u.stage = StageDone
	if fi, statErr := os.Stat(image); statErr == nil {
		Logf("Done: %s (%s)", image, units.BytesSize(float64(fi.Size())))
	} else {
		Logf("Done: %s", image)
	}

	return image, nil
}

func (u *Unwrapper) extract(ctx context.Context, cfg Config, scope *Scope) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	lock, err := AcquireRunLock(cfg.WorkDirectory)
	if err != nil {
		return "", &ConfigurationError{Err: err}
	}
	scope.Defer("release run lock", lock.Release)

	if err := u.enter(ctx, StageAttaching); err != nil {
		return "", err
	}
	flasher, err := u.attach(ctx, scope, cfg.FlasherImage)
	if err != nil {
		return "", err
	}

	if err := u.enter(ctx, StageMounting); err != nil {
		return "", err
	}
	flasherBoot := cfg.MountPoint(FlasherBoot)
	flasherRoot := cfg.MountPoint(FlasherRoot)
	if err := u.mount(ctx, scope, flasher.Partition(bootPartition), flasherBoot); err != nil {
		return "", err
	}
	if err := u.mount(ctx, scope, flasher.Partition(rootPartition), flasherRoot); err != nil {
		return "", err
	}

	if err := u.enter(ctx, StageCopying); err != nil {
		return "", err
	}
	payload, err := FindPayload(flasherRoot)
	if err != nil {
		return "", err
	}
	image := cfg.OutputImage()
	if err := ExtractPayload(ctx, payload, image); err != nil {
		return "", err
	}

	if err := u.enter(ctx, StageConfiguringBoot); err != nil {
		return image, err
	}
	output, err := u.attach(ctx, scope, image)
	if err != nil {
		return image, err
	}
	outputBoot := cfg.MountPoint(OutputBoot)
	if err := u.mount(ctx, scope, output.Partition(bootPartition), outputBoot); err != nil {
		return image, err
	}
	if err := u.mount(ctx, scope, output.Partition(rootPartition), cfg.MountPoint(OutputRoot)); err != nil {
		return image, err
	}

	for _, a := range cfg.Artifacts {
		if err := ctx.Err(); err != nil {
			return image, err
		}
		if err := a.Apply(flasherBoot, outputBoot); err != nil {
			return image, fmt.Errorf("Failed to copy %s: %w", a.Path, err)
		}
	}

	return image, nil
}

func (u *Unwrapper) attach(ctx context.Context, scope *Scope, image string) (Loop, error) {
	loop, err := u.system.AttachLoop(ctx, image)
	if err != nil {
		return Loop{}, &AttachmentError{Image: image, Err: err}
	}
	scope.Defer("detach "+loop.Path, func() error {
		return u.system.DetachLoop(context.Background(), loop)
	})
	return loop, nil
}

func (u *Unwrapper) mount(ctx context.Context, scope *Scope, device, target string) error {
	if err := os.MkdirAll(target, 0755); err != nil {
		return &MountError{Device: device, Target: target, Err: err}
	}
	if err := u.system.Mount(ctx, device, target); err != nil {
		return &MountError{Device: device, Target: target, Err: err}
	}
	scope.Defer("unmount "+target, func() error {
		return u.system.Unmount(target)
	})
	return nil
}

// RestoreOwner hands image back to cfg.Owner, if any. Failures are only
// warned about.
func RestoreOwner(system System, cfg Config, image string) {
	if cfg.Owner == nil || image == "" {
		return
	}
	if _, err := os.Stat(image); err != nil {
		return
	}
	if err := system.Chown(image, *cfg.Owner); err != nil {
		Warningf("Failed to restore ownership of %s: %v", image, err)
	}
}
