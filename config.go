package unwrap

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/docker/go-units"
)

// DefaultWorkDirectory holds the fixed mount points and the run lock.
const DefaultWorkDirectory = "/tmp/resin-unwrap"

// Mount point names below the work directory.
const (
	FlasherBoot = "flasher-boot"
	FlasherRoot = "flasher-root"
	OutputBoot  = "output-boot"
	OutputRoot  = "output-root"
)

// Partition numbers of the boot and root filesystems in both the flasher and
// the payload image.
const (
	bootPartition = 1
	rootPartition = 2
)

// Format is a virtual-disk format the raw output image can be converted to.
type Format string

const (
	FormatNone Format = ""
	FormatVDI  Format = "vdi"
	FormatVHD  Format = "vhd"
	FormatVMDK Format = "vmdk"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatNone, FormatVDI, FormatVHD, FormatVMDK:
		return f, nil
	}
	return FormatNone, configErrorf("unsupported format '%s', expected one of vdi, vhd or vmdk", s)
}

// qemuName is the qemu-img driver name for the format.
func (f Format) qemuName() string {
	if f == FormatVHD {
		return "vpc"
	}
	return string(f)
}

// conversionOptions are passed with -o when converting to the format.
func (f Format) conversionOptions() string {
	if f == FormatVMDK {
		// VMware Workstation 6 compatible descriptor, readable by VirtualBox
		// and older ESXi releases alike
		return "compat6"
	}
	return ""
}

// Options holds the raw, unvalidated inputs of a run.
type Options struct {
	FlasherImage    string
	OutputDirectory string
	OutputName      string
	Format          string
	ImageSize       string
	WorkDirectory   string
	ArtifactsFile   string
	TemplateVars    map[string]string
	DebugShell      string
}

// Config is the validated description of one unwrap run. It is built once by
// NewConfig and passed by value afterwards.
type Config struct {
	FlasherImage    string
	OutputDirectory string
	OutputName      string
	Format          Format
	ImageSize       string
	WorkDirectory   string
	Artifacts       []Artifact
	DebugShell      string
	Owner           *Owner
}

var sizePattern = regexp.MustCompile(`^\+?[0-9]+(\.[0-9]+)?[kKmMgGtTpPeE]?$`)

// NewConfig validates opts. Nothing on the host is modified.
func NewConfig(opts Options) (Config, error) {
	var cfg Config

	if opts.FlasherImage == "" {
		return cfg, configErrorf("no flasher image given, use --resin-image-flasher")
	}

	if opts.ImageSize != "" && opts.Format == "" {
		return cfg, configErrorf("--image-size can only be used together with --format")
	}

	format, err := ParseFormat(opts.Format)
	if err != nil {
		return cfg, err
	}
	cfg.Format = format

	if opts.ImageSize != "" {
		if err := validateSize(opts.ImageSize); err != nil {
			return cfg, err
		}
		cfg.ImageSize = opts.ImageSize
	}

	cfg.FlasherImage = CleanPath(opts.FlasherImage)
	flasher, err := os.Stat(cfg.FlasherImage)
	if err != nil {
		return cfg, configErrorf("flasher image %s: %w", opts.FlasherImage, err)
	}
	if !flasher.Mode().IsRegular() {
		return cfg, configErrorf("flasher image %s is not a regular file", opts.FlasherImage)
	}

	outdir := opts.OutputDirectory
	if outdir == "" {
		outdir, err = DefaultOutputDirectory()
		if err != nil {
			return cfg, configErrorf("cannot determine default output directory: %w", err)
		}
	}
	cfg.OutputDirectory = CleanPath(outdir)
	fi, err := os.Stat(cfg.OutputDirectory)
	if err != nil {
		return cfg, configErrorf("output directory %s does not exist", outdir)
	}
	if !fi.IsDir() {
		return cfg, configErrorf("output directory %s is not a directory", outdir)
	}

	cfg.OutputName, err = RenderOutputName(opts.OutputName, cfg.FlasherImage, cfg.Format)
	if err != nil {
		return cfg, configErrorf("invalid output name: %w", err)
	}
	for _, out := range []string{cfg.OutputImage(), cfg.FinalImage()} {
		if fi, err := os.Stat(out); err == nil && os.SameFile(flasher, fi) {
			return cfg, configErrorf("output image %s would overwrite the flasher image, choose another --output-directory or --output-name", out)
		}
	}

	cfg.WorkDirectory = opts.WorkDirectory
	if cfg.WorkDirectory == "" {
		cfg.WorkDirectory = DefaultWorkDirectory
	}
	cfg.WorkDirectory = CleanPath(cfg.WorkDirectory)

	if opts.ArtifactsFile != "" {
		cfg.Artifacts, err = ParseManifest(CleanPath(opts.ArtifactsFile), opts.TemplateVars)
		if err != nil {
			return cfg, configErrorf("artifact manifest %s: %w", opts.ArtifactsFile, err)
		}
	} else {
		cfg.Artifacts = DefaultArtifacts()
	}

	cfg.DebugShell = opts.DebugShell
	cfg.Owner = InvokingOwner()

	return cfg, nil
}

func validateSize(size string) error {
	if !sizePattern.MatchString(size) {
		return configErrorf("invalid image size '%s'", size)
	}
	bytes, err := sizeInBytes(strings.TrimPrefix(size, "+"))
	if err != nil {
		return configErrorf("invalid image size '%s': %w", size, err)
	}
	if bytes <= 0 {
		return configErrorf("image size '%s' must be positive", size)
	}
	return nil
}

func sizeInBytes(size string) (int64, error) {
	n := len(size)
	if n == 0 || (size[n-1] != 'e' && size[n-1] != 'E') {
		return units.RAMInBytes(size)
	}
	// go-units stops at peta
	peta, err := units.RAMInBytes(size[:n-1] + "P")
	if err != nil {
		return 0, err
	}
	if peta > math.MaxInt64/1024 {
		return 0, fmt.Errorf("size %s out of range", size)
	}
	return peta * 1024, nil
}

// DefaultOutputDirectory is the directory holding the running executable.
func DefaultOutputDirectory() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// MountPoint returns the path of the named fixed mount point.
func (c Config) MountPoint(name string) string {
	return filepath.Join(c.WorkDirectory, name)
}

// OutputImage is the path of the raw image extracted from the flasher.
func (c Config) OutputImage() string {
	return filepath.Join(c.OutputDirectory, c.OutputName+".img")
}

// FinalImage is the path of the image a successful run leaves behind: the
// raw output image, or its conversion when a format was requested.
func (c Config) FinalImage() string {
	if c.Format == FormatNone {
		return c.OutputImage()
	}
	return ConvertedPath(c.OutputImage(), c.Format)
}
