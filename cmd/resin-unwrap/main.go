package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-debos/fakemachine"
	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"

	"github.com/resin-os/unwrap"
)

type options struct {
	FlasherImage       string            `long:"resin-image-flasher" value-name:"PATH" description:"Flasher image to extract the payload image from (required)"`
	OutputDirectory    string            `long:"output-directory" value-name:"PATH" description:"Directory to write the output image to (default: the directory of this tool)"`
	ImageSize          string            `long:"image-size" value-name:"SIZE" description:"Resize the converted image, e.g. 10G (requires --format)"`
	Format             string            `long:"format" value-name:"vdi|vhd|vmdk" description:"Convert the output image to a virtual machine disk format"`
	WorkDirectory      string            `long:"work-directory" value-name:"PATH" default:"/tmp/resin-unwrap" description:"Directory holding the mount points"`
	Artifacts          string            `long:"artifacts" value-name:"FILE" description:"Manifest of the boot partition files to migrate"`
	TemplateVars       map[string]string `short:"t" long:"template-var" description:"Template variables for the artifact manifest (use KEY:VALUE syntax)"`
	OutputName         string            `long:"output-name" value-name:"TEMPLATE" description:"Output file name template, without extension"`
	DebugShell         bool              `long:"debug-shell" description:"Fall into an interactive shell on error, before cleaning up"`
	Shell              string            `long:"shell" default:"/bin/sh" description:"Shell to use for --debug-shell"`
	FakemachineBackend string            `long:"fakemachine-backend" default:"none" description:"Run inside a fakemachine VM with the given backend (none, auto, kvm, uml, qemu)"`
}

func (o options) unwrapOptions() unwrap.Options {
	opts := unwrap.Options{
		FlasherImage:    o.FlasherImage,
		OutputDirectory: o.OutputDirectory,
		OutputName:      o.OutputName,
		Format:          o.Format,
		ImageSize:       o.ImageSize,
		WorkDirectory:   o.WorkDirectory,
		ArtifactsFile:   o.Artifacts,
		TemplateVars:    o.TemplateVars,
	}
	if o.DebugShell {
		opts.DebugShell = o.Shell
	}
	return opts
}

// machineArgs are the arguments for the unwrap running inside fakemachine.
// Paths are absolute so they resolve against the shared volumes.
func machineArgs(o options, cfg unwrap.Config) []string {
	args := []string{
		"--resin-image-flasher", cfg.FlasherImage,
		"--output-directory", cfg.OutputDirectory,
		"--output-name", cfg.OutputName,
		"--work-directory", filepath.Join("/scratch", "unwrap-"+uuid.NewString()),
	}
	if cfg.Format != unwrap.FormatNone {
		args = append(args, "--format", string(cfg.Format))
	}
	if cfg.ImageSize != "" {
		args = append(args, "--image-size", cfg.ImageSize)
	}
	if o.Artifacts != "" {
		args = append(args, "--artifacts", unwrap.CleanPath(o.Artifacts))
	}
	if cfg.DebugShell != "" {
		args = append(args, "--debug-shell", "--shell", cfg.DebugShell)
	}
	for k, v := range o.TemplateVars {
		args = append(args, "--template-var", fmt.Sprintf("%s:%s", k, v))
	}
	return args
}

func runInMachine(o options, cfg unwrap.Config) (int, error) {
	m, err := fakemachine.NewMachineWithBackend(o.FakemachineBackend)
	if err != nil {
		return 1, err
	}

	m.AddVolume(filepath.Dir(cfg.FlasherImage))
	m.AddVolume(cfg.OutputDirectory)
	if o.Artifacts != "" {
		m.AddVolume(filepath.Dir(unwrap.CleanPath(o.Artifacts)))
	}

	unwrap.Logf("Running unwrap in fakemachine (%s backend)", o.FakemachineBackend)
	return m.RunInMachineWithArgs(machineArgs(o, cfg))
}

func main() {
	var o options

	parser := flags.NewParser(&o, flags.HelpFlag|flags.PassDoubleDash)
	parser.Usage = "--resin-image-flasher PATH [OPTIONS]"

	args, err := parser.Parse()
	if err != nil {
		flagsErr, ok := err.(*flags.Error)
		if ok && flagsErr.Type == flags.ErrHelp {
			fmt.Println(flagsErr.Message)
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "%v\n\n", err)
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}

	if len(args) != 0 {
		fmt.Fprintf(os.Stderr, "Unexpected arguments: %v\n\n", args)
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}

	cfg, err := unwrap.NewConfig(o.unwrapOptions())
	if err != nil {
		unwrap.Fatalf("%v", err)
	}

	if o.FakemachineBackend != "none" && !fakemachine.InMachine() {
		exitcode, err := runInMachine(o, cfg)
		if err != nil {
			unwrap.Fatalf("fakemachine: %v", err)
		}
		// sudo is not visible inside the machine
		if exitcode == 0 {
			unwrap.RestoreOwner(unwrap.NewHostSystem(), cfg, cfg.FinalImage())
		}
		os.Exit(exitcode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	u := unwrap.New(unwrap.NewHostSystem(), unwrap.Command{})
	image, err := u.Run(ctx, cfg)
	stop()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			unwrap.Fatalf("Interrupted while %s, cleaned up", unwrap.FailedStage(err))
		}
		unwrap.Fatalf("%v", err)
	}

	unwrap.Logf("Unwrapped %s to %s", filepath.Base(cfg.FlasherImage), image)
}
