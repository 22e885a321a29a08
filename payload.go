package unwrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// PayloadDirectory is where the flasher root partition keeps the image it
// writes to the target device.
const PayloadDirectory = "opt"

// FindPayload returns the payload image below the payload directory of a
// mounted flasher root. Candidates are ordered lexically by path; when more
// than one exists the first is used and a warning is logged.
func FindPayload(root string) (string, error) {
	dir := filepath.Join(root, PayloadDirectory)

	var candidates []string
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == dir {
				return filepath.SkipDir
			}
			return err
		}
		if info.Mode().IsRegular() {
			candidates = append(candidates, p)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("Failed to search %s: %w", dir, err)
	}

	if len(candidates) == 0 {
		return "", &MissingPayloadError{Directory: dir}
	}

	sort.Strings(candidates)
	if len(candidates) > 1 {
		Warningf("Found %d candidate payload images in %s, using %s",
			len(candidates), dir, filepath.Base(candidates[0]))
	}

	return candidates[0], nil
}

// payloadReader wraps r with a decompressor picked from the payload name.
func payloadReader(name string, r io.Reader) (io.ReadCloser, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xz":
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	case ".gz":
		return gzip.NewReader(r)
	case ".zst":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	}
	return io.NopCloser(r), nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// ExtractPayload writes the payload at src to dst, decompressing it on the
// way when it is an xz, gzip or zstd stream.
func ExtractPayload(ctx context.Context, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	r, err := payloadReader(src, in)
	if err != nil {
		return fmt.Errorf("Failed to open payload %s: %w", src, err)
	}
	defer r.Close()

	Logf("Extracting %s to %s", filepath.Base(src), dst)
	if err := writeFileFrom(contextReader{ctx, r}, dst, 0644); err != nil {
		return fmt.Errorf("Failed to extract payload %s: %w", src, err)
	}

	return nil
}
