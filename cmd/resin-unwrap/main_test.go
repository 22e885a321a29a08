package main

import (
	"testing"

	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resin-os/unwrap"
)

func parse(t *testing.T, args ...string) (options, error) {
	var o options
	_, err := flags.NewParser(&o, flags.HelpFlag|flags.PassDoubleDash).ParseArgs(args)
	return o, err
}

func TestOptions(t *testing.T) {
	o, err := parse(t, "--resin-image-flasher", "flasher.img", "--format", "vmdk",
		"--image-size", "5G", "-t", "ssid:office", "--debug-shell")
	require.NoError(t, err)

	opts := o.unwrapOptions()
	assert.Equal(t, "flasher.img", opts.FlasherImage)
	assert.Equal(t, "vmdk", opts.Format)
	assert.Equal(t, "5G", opts.ImageSize)
	assert.Equal(t, "/tmp/resin-unwrap", opts.WorkDirectory)
	assert.Equal(t, map[string]string{"ssid": "office"}, opts.TemplateVars)
	assert.Equal(t, "/bin/sh", opts.DebugShell)
	assert.Equal(t, "none", o.FakemachineBackend)
}

func TestOptions_UnknownFlag(t *testing.T) {
	_, err := parse(t, "--resin-image-flasher", "flasher.img", "--compress")
	flagsErr, ok := err.(*flags.Error)
	require.True(t, ok)
	assert.Equal(t, flags.ErrUnknownFlag, flagsErr.Type)
}

func TestMachineArgs(t *testing.T) {
	o := options{Artifacts: "/etc/unwrap/artifacts.yaml"}
	cfg := unwrap.Config{
		FlasherImage:    "/images/resin-flasher.img",
		OutputDirectory: "/out",
		OutputName:      "resin-flasher",
		Format:          unwrap.FormatVDI,
		ImageSize:       "8G",
	}

	args := machineArgs(o, cfg)

	assert.Equal(t, []string{"--resin-image-flasher", "/images/resin-flasher.img"}, args[0:2])
	assert.Equal(t, []string{"--output-directory", "/out"}, args[2:4])
	assert.Equal(t, []string{"--output-name", "resin-flasher"}, args[4:6])
	assert.Equal(t, "--work-directory", args[6])
	assert.Regexp(t, `^/scratch/unwrap-`, args[7])
	assert.Equal(t, []string{"--format", "vdi", "--image-size", "8G",
		"--artifacts", "/etc/unwrap/artifacts.yaml"}, args[8:])
}

func TestMachineArgs_DebugShell(t *testing.T) {
	o, err := parse(t, "--resin-image-flasher", "flasher.img", "--debug-shell", "--shell", "/bin/bash")
	require.NoError(t, err)
	cfg := unwrap.Config{
		FlasherImage:    "/images/flasher.img",
		OutputDirectory: "/out",
		OutputName:      "flasher",
		DebugShell:      o.unwrapOptions().DebugShell,
	}

	args := machineArgs(o, cfg)

	assert.Equal(t, []string{"--debug-shell", "--shell", "/bin/bash"}, args[8:])

	forwarded, err := parse(t, args...)
	require.NoError(t, err)
	assert.Equal(t, "/bin/bash", forwarded.unwrapOptions().DebugShell)
}
