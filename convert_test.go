package unwrap_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resin-os/unwrap"
)

func TestConvert_WithoutResize(t *testing.T) {
	tmpdir := t.TempDir()
	raw := filepath.Join(tmpdir, "resin.img")
	writeFile(t, raw, "raw")
	runner := &recordingRunner{}

	final, err := unwrap.Converter{Runner: runner}.Convert(context.Background(), raw, unwrap.FormatVHD, "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(tmpdir, "resin.vhd"), final)
	assert.Equal(t, []string{"resin.vhd"}, listDir(t, tmpdir))
	require.Len(t, runner.commands, 2)
	assert.Regexp(t, `^qemu-img convert -f qcow2 -O vpc \S+\.qcow2 \S+/resin\.vhd$`, runner.commands[1])
}

func TestConvert_ResizeFailureKeepsRawImage(t *testing.T) {
	tmpdir := t.TempDir()
	raw := filepath.Join(tmpdir, "resin.img")
	writeFile(t, raw, "raw")
	runner := &recordingRunner{failOn: "resize"}

	_, err := unwrap.Converter{Runner: runner}.Convert(context.Background(), raw, unwrap.FormatVDI, "1T")

	var convErr *unwrap.ConversionError
	require.True(t, errors.As(err, &convErr))
	assert.Equal(t, []string{"resin.img"}, listDir(t, tmpdir))
	_, err = os.Stat(raw)
	assert.NoError(t, err)
}

func TestConvertedPath(t *testing.T) {
	assert.Equal(t, "/out/resin.vmdk", unwrap.ConvertedPath("/out/resin.img", unwrap.FormatVMDK))
}
