package unwrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	losetup "github.com/freddierice/go-losetup/v2"
)

const loopControl = "/dev/loop-control"

// loopDevice is the part of losetup.Device used for cleanup.
type loopDevice interface {
	Detach() error
	Remove() error
}

// HostSystem implements System with loop devices, partx, blkid and the
// mount(2) family of syscalls.
type HostSystem struct {
	cmd Command

	removeAttempts int
	removeDelay    time.Duration
}

func NewHostSystem() *HostSystem {
	return &HostSystem{removeAttempts: 60, removeDelay: time.Second}
}

func (h *HostSystem) AttachLoop(ctx context.Context, image string) (Loop, error) {
	if _, err := os.Stat(loopControl); err != nil {
		return Loop{}, fmt.Errorf("no loop device support on this host: %w", err)
	}

	dev, err := losetup.Attach(image, 0, false)
	if err != nil {
		return Loop{}, fmt.Errorf("Failed to setup loop device: %w", err)
	}
	loop := Loop{Image: image, Path: dev.Path(), dev: dev}
	Logf("Attached %s to %s", image, loop.Path)

	/* The loop is attached without partition scanning, have the kernel
	 * create the partition devices explicitly */
	err = h.cmd.Run(ctx, "partx", "partx", "--update", loop.Path)
	if err != nil {
		h.detach(loop)
		return Loop{}, err
	}

	return loop, nil
}

func (h *HostSystem) DetachLoop(ctx context.Context, loop Loop) error {
	if err := h.cmd.Run(ctx, "partx", "partx", "--delete", loop.Path); err != nil {
		Warningf("Failed to remove partitions of %s: %v", loop.Path, err)
	}
	return h.detach(loop)
}

func (h *HostSystem) detach(loop Loop) error {
	if loop.dev == nil {
		return errors.New("loop device not attached")
	}

	err := loop.dev.Detach()
	if err != nil {
		return fmt.Errorf("Failed to detach loop device %s: %w", loop.Path, err)
	}

	for t := 0; t < h.removeAttempts; t++ {
		err = loop.dev.Remove()
		if err == nil {
			break
		}
		Logf("Loop dev couldn't remove %s, waiting", err)
		time.Sleep(h.removeDelay)
	}

	if err != nil {
		return fmt.Errorf("Failed to remove loop device %s: %w", loop.Path, err)
	}

	return nil
}

func (h *HostSystem) Chown(path string, owner Owner) error {
	return os.Chown(path, owner.UID, owner.GID)
}
