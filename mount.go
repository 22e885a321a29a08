package unwrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Partition device nodes are created asynchronously by udev after partx.
const devicePollAttempts = 50
const devicePollDelay = 100 * time.Millisecond

func waitForDevice(ctx context.Context, device string) error {
	var err error
	for t := 0; t < devicePollAttempts; t++ {
		if _, err = os.Stat(device); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(devicePollDelay):
		}
	}
	return err
}

func (h *HostSystem) filesystem(ctx context.Context, device string) (string, error) {
	fs, err := h.cmd.Output(ctx, "blkid", "-o", "value", "-s", "TYPE", "-p", "-c", "none", device)
	if err != nil {
		return "", fmt.Errorf("Failed to get filesystem type of %s: %w", device, err)
	}
	if fs == "" {
		return "", fmt.Errorf("No filesystem found on %s", device)
	}
	return fs, nil
}

func (h *HostSystem) Mount(ctx context.Context, device, target string) error {
	if err := waitForDevice(ctx, device); err != nil {
		return err
	}

	fs, err := h.filesystem(ctx, device)
	if err != nil {
		return err
	}

	if err := unix.Mount(device, target, fs, 0, ""); err != nil {
		return fmt.Errorf("%s (%s) mount failed: %w", device, fs, err)
	}
	Logf("Mounted %s (%s) on %s", device, fs, target)

	return nil
}

func (h *HostSystem) Unmount(target string) error {
	if err := unix.Unmount(target, 0); err != nil {
		return fmt.Errorf("Failed to unmount %s: %w", target, err)
	}
	return nil
}
