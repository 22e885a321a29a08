/*
Artifact manifests

The configuration migrated from the flasher boot partition into the boot
partition of the extracted image is described by a list of artifacts. Without
a manifest the built-in list is used:

	artifacts:
	  - path: splash
	    mode: merge
	  - path: config.json
	    mode: overwrite
	  - path: system-connections
	    mode: replace
	    optional: true
	  - path: system-proxy
	    mode: replace
	    optional: true

Properties:

- path -- path relative to the root of the boot partition.

- mode -- 'merge' copies the contents of a directory into the existing
directory of the same name; 'overwrite' copies a file or directory over the
destination; 'replace' deletes the destination first so nothing of it
survives.

- optional -- skip the artifact when the flasher does not have it. Missing
mandatory artifacts fail the run.

Manifests are templates: the text/template language with
the slim-sprig functions, template variables given with -t KEY:VALUE.
*/
package unwrap

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/go-task/slim-sprig/v3"
	"gopkg.in/yaml.v2"
)

type ArtifactMode string

const (
	ArtifactMerge     ArtifactMode = "merge"
	ArtifactOverwrite ArtifactMode = "overwrite"
	ArtifactReplace   ArtifactMode = "replace"
)

type Artifact struct {
	Path     string       `yaml:"path"`
	Mode     ArtifactMode `yaml:"mode"`
	Optional bool         `yaml:"optional"`
}

type manifest struct {
	Artifacts []Artifact `yaml:"artifacts"`
}

func DefaultArtifacts() []Artifact {
	return []Artifact{
		{Path: "splash", Mode: ArtifactMerge},
		{Path: "config.json", Mode: ArtifactOverwrite},
		{Path: "system-connections", Mode: ArtifactReplace, Optional: true},
		{Path: "system-proxy", Mode: ArtifactReplace, Optional: true},
	}
}

// ParseManifest renders the manifest template in file and returns its
// verified artifacts.
func ParseManifest(file string, templateVars map[string]string) ([]Artifact, error) {
	t := template.New(path.Base(file))
	t.Funcs(sprig.FuncMap())

	if _, err := t.ParseFiles(file); err != nil {
		return nil, err
	}

	if templateVars == nil {
		templateVars = make(map[string]string)
	}

	data := new(bytes.Buffer)
	if err := t.Execute(data, templateVars); err != nil {
		return nil, err
	}

	var m manifest
	if err := yaml.UnmarshalStrict(data.Bytes(), &m); err != nil {
		return nil, err
	}

	if len(m.Artifacts) == 0 {
		return nil, fmt.Errorf("manifest must list at least one artifact")
	}

	for _, a := range m.Artifacts {
		if err := a.Verify(); err != nil {
			return nil, err
		}
	}

	return m.Artifacts, nil
}

func (a Artifact) Verify() error {
	if a.Path == "" {
		return fmt.Errorf("artifact without a path")
	}
	if filepath.IsAbs(a.Path) {
		return fmt.Errorf("artifact path %s must be relative to the boot partition", a.Path)
	}
	if clean := path.Clean(a.Path); clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("artifact path %s must point inside the boot partition", a.Path)
	}
	switch a.Mode {
	case ArtifactMerge, ArtifactOverwrite, ArtifactReplace:
	case "":
		return fmt.Errorf("artifact %s missing mode", a.Path)
	default:
		return fmt.Errorf("artifact %s has unknown mode '%s'", a.Path, a.Mode)
	}
	return nil
}

func (a Artifact) String() string {
	return fmt.Sprintf("%s (%s)", a.Path, a.Mode)
}

// Apply copies the artifact from the boot partition mounted at srcRoot to the
// one mounted at dstRoot.
func (a Artifact) Apply(srcRoot, dstRoot string) error {
	src, err := RestrictedPath(srcRoot, a.Path)
	if err != nil {
		return err
	}
	dst, err := RestrictedPath(dstRoot, a.Path)
	if err != nil {
		return err
	}

	info, err := os.Stat(src)
	if os.IsNotExist(err) && a.Optional {
		Logf("No %s on the flasher boot partition, skipping", a.Path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("Failed to find %s: %w", a.Path, err)
	}

	Logf("Copying %s", a)

	switch a.Mode {
	case ArtifactMerge:
		if !info.IsDir() {
			return fmt.Errorf("%s must be a directory to be merged", a.Path)
		}
	case ArtifactReplace:
		if info.IsDir() {
			return ReplaceTree(src, dst)
		}
		if err := os.RemoveAll(dst); err != nil {
			return fmt.Errorf("Failed to remove %s: %w", dst, err)
		}
	}

	if info.IsDir() {
		return CopyTree(src, dst)
	}
	return CopyFile(src, dst, info.Mode())
}
