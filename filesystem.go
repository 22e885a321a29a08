package unwrap

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

func CleanPathAt(path, at string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	return filepath.Join(at, path)
}

func CleanPath(path string) string {
	cwd, _ := os.Getwd()
	return CleanPathAt(path, cwd)
}

// CopyFile copies src over dst through a temporary file in the destination
// directory.
func CopyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	return writeFileFrom(in, dst, mode)
}

func writeFileFrom(in io.Reader, dst string, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".unwrap-")
	if err != nil {
		return err
	}
	_, err = io.Copy(tmp, in)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	// FAT boot partitions refuse most mode changes
	if err = os.Chmod(tmp.Name(), mode); err != nil && !errors.Is(err, fs.ErrPermission) {
		os.Remove(tmp.Name())
		return err
	}

	if err = os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return nil
}

// CopyTree copies sourcetree into desttree, merging with whatever desttree
// already contains.
func CopyTree(sourcetree, desttree string) error {
	walker := func(p string, info os.FileInfo, err error) error {

		if err != nil {
			return err
		}

		suffix, _ := filepath.Rel(sourcetree, p)
		target := path.Join(desttree, suffix)
		switch info.Mode() & os.ModeType {
		case 0:
			err := CopyFile(p, target, info.Mode())
			if err != nil {
				return fmt.Errorf("Failed to copy file %s: %w", p, err)
			}
		case os.ModeDir:
			err := os.Mkdir(target, info.Mode().Perm())
			if err != nil && !os.IsExist(err) {
				return fmt.Errorf("Failed to create directory %s: %w", target, err)
			}
		case os.ModeSymlink:
			link, err := os.Readlink(p)
			if err != nil {
				return fmt.Errorf("Failed to read symlink %s: %w", suffix, err)
			}
			os.Remove(target)
			if err := os.Symlink(link, target); err != nil {
				return fmt.Errorf("Failed to create symlink %s: %w", target, err)
			}
		default:
			return fmt.Errorf("File %s with mode %v not handled", p, info.Mode())
		}

		return nil
	}

	return filepath.Walk(sourcetree, walker)
}

// ReplaceTree removes desttree and copies sourcetree in its place, so no
// entry of the previous desttree survives.
func ReplaceTree(sourcetree, desttree string) error {
	if err := os.RemoveAll(desttree); err != nil {
		return fmt.Errorf("Failed to remove %s: %w", desttree, err)
	}
	return CopyTree(sourcetree, desttree)
}

func RestrictedPath(prefix, dest string) (string, error) {
	var err error
	destination := path.Join(prefix, dest)
	destination, err = filepath.Abs(destination)
	if err != nil {
		return "", err
	}
	if destination != prefix && !strings.HasPrefix(destination, prefix+string(filepath.Separator)) {
		return "", fmt.Errorf("The resulting path points outside of prefix '%s': '%s'", prefix, destination)
	}
	return destination, nil
}
