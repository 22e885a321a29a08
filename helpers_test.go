package unwrap_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/resin-os/unwrap"
)

// fakeSystem stands in for loop devices and mounts: every partition of an
// image is a fixture directory, mounting replaces the mount point with a
// symlink to it.
type fakeSystem struct {
	images   map[string][]string
	devices  map[string]string
	attached map[string]bool
	mounted  map[string]bool
	events   []string
	chowned  []string

	failAttach string
	failMount  string
	next       int

	// onMount is called after each successful mount.
	onMount func(target string)
}

func newFakeSystem() *fakeSystem {
	return &fakeSystem{
		images:   make(map[string][]string),
		devices:  make(map[string]string),
		attached: make(map[string]bool),
		mounted:  make(map[string]bool),
	}
}

func (f *fakeSystem) addImage(image string, partitions ...string) {
	f.images[image] = partitions
}

func (f *fakeSystem) AttachLoop(ctx context.Context, image string) (unwrap.Loop, error) {
	if image == f.failAttach {
		return unwrap.Loop{}, errors.New("no free loop device")
	}
	parts, ok := f.images[image]
	if !ok {
		return unwrap.Loop{}, fmt.Errorf("unknown image %s", image)
	}
	f.next++
	loop := unwrap.Loop{Image: image, Path: fmt.Sprintf("/dev/loop%d", f.next)}
	for idx, dir := range parts {
		f.devices[loop.Partition(idx+1)] = dir
	}
	f.attached[loop.Path] = true
	f.events = append(f.events, "attach "+loop.Path)
	return loop, nil
}

func (f *fakeSystem) DetachLoop(ctx context.Context, loop unwrap.Loop) error {
	if !f.attached[loop.Path] {
		return fmt.Errorf("%s not attached", loop.Path)
	}
	delete(f.attached, loop.Path)
	f.events = append(f.events, "detach "+loop.Path)
	return nil
}

func (f *fakeSystem) Mount(ctx context.Context, device, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if device == f.failMount {
		return errors.New("wrong fs type, bad superblock")
	}
	dir, ok := f.devices[device]
	if !ok {
		return fmt.Errorf("special device %s does not exist", device)
	}
	if err := os.Remove(target); err != nil {
		return err
	}
	if err := os.Symlink(dir, target); err != nil {
		return err
	}
	f.mounted[target] = true
	f.events = append(f.events, "mount "+filepath.Base(target))
	if f.onMount != nil {
		f.onMount(target)
	}
	return nil
}

func (f *fakeSystem) Unmount(target string) error {
	if !f.mounted[target] {
		return fmt.Errorf("%s: not mounted", target)
	}
	if err := os.Remove(target); err != nil {
		return err
	}
	delete(f.mounted, target)
	f.events = append(f.events, "unmount "+filepath.Base(target))
	return os.Mkdir(target, 0755)
}

func (f *fakeSystem) Chown(path string, owner unwrap.Owner) error {
	f.chowned = append(f.chowned, path)
	return nil
}

// recordingRunner records command lines instead of running them. qemu-img
// convert creates its destination file.
type recordingRunner struct {
	commands []string
	failOn   string
}

func (r *recordingRunner) Run(ctx context.Context, label string, cmdline ...string) error {
	line := strings.Join(cmdline, " ")
	r.commands = append(r.commands, line)
	if r.failOn != "" && strings.Contains(line, r.failOn) {
		return fmt.Errorf("%s: exit status 1", label)
	}
	if len(cmdline) > 1 && cmdline[0] == "qemu-img" && cmdline[1] == "convert" {
		return os.WriteFile(cmdline[len(cmdline)-1], []byte(line), 0644)
	}
	return nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
