package unwrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Converter turns a raw image into a virtual-disk image with qemu-img,
// pivoting through a qcow2 container so the image can be resized.
type Converter struct {
	Runner Runner
}

// ConvertedPath is the path of the image raw converts to in format.
func ConvertedPath(raw string, format Format) string {
	return strings.TrimSuffix(raw, filepath.Ext(raw)) + "." + string(format)
}

// Convert converts the raw image to format, resizing it to size when not
// empty. On success only the converted image is left and its path returned.
func (c Converter) Convert(ctx context.Context, raw string, format Format, size string) (string, error) {
	base := strings.TrimSuffix(raw, filepath.Ext(raw))
	container := base + "." + uuid.NewString()[:8] + ".qcow2"
	final := ConvertedPath(raw, format)

	Logf("Converting %s to %s", filepath.Base(raw), format)

	err := c.Runner.Run(ctx, "qemu-img", "qemu-img", "convert",
		"-f", "raw", "-O", "qcow2", raw, container)
	if err != nil {
		os.Remove(container)
		return "", &ConversionError{Err: err}
	}
	defer os.Remove(container)

	if size != "" {
		Logf("Resizing image to %s", size)
		err = c.Runner.Run(ctx, "qemu-img", "qemu-img", "resize",
			"-f", "qcow2", container, size)
		if err != nil {
			return "", &ConversionError{Err: err}
		}
	}

	cmdline := []string{"qemu-img", "convert", "-f", "qcow2", "-O", format.qemuName()}
	if opts := format.conversionOptions(); opts != "" {
		cmdline = append(cmdline, "-o", opts)
	}
	cmdline = append(cmdline, container, final)

	if err := c.Runner.Run(ctx, "qemu-img", cmdline...); err != nil {
		os.Remove(final)
		return "", &ConversionError{Err: err}
	}

	if err := os.Remove(raw); err != nil {
		return "", &ConversionError{Err: err}
	}

	return final, nil
}
