package unwrap

import (
	"context"
	"fmt"
)

// Loop is an image file attached to a loop block device.
type Loop struct {
	Image string
	Path  string

	dev loopDevice
}

// Partition returns the block device of partition number n of the loop.
func (l Loop) Partition(n int) string {
	return PartitionDevice(l.Path, n)
}

// PartitionDevice returns the device node of partition number on device. If
// the device name ends in a digit the partition suffix is p<number>, else
// it's just <number>.
func PartitionDevice(device string, number int) string {
	if device == "" {
		return ""
	}
	last := device[len(device)-1]
	if last >= '0' && last <= '9' {
		return fmt.Sprintf("%sp%d", device, number)
	}
	return fmt.Sprintf("%s%d", device, number)
}

// System is the set of host facilities the unwrap pipeline drives.
type System interface {
	AttachLoop(ctx context.Context, image string) (Loop, error)
	DetachLoop(ctx context.Context, loop Loop) error
	Mount(ctx context.Context, device, target string) error
	Unmount(target string) error
	Chown(path string, owner Owner) error
}
