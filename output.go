package unwrap

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/go-task/slim-sprig/v3"
)

// DefaultOutputName names the output after the flasher image.
const DefaultOutputName = "{{ .Name }}"

type outputNameFields struct {
	Name    string // flasher file name without extension
	Flasher string // flasher file name
	Format  string // requested format, empty for raw
}

// RenderOutputName expands the output name template for a flasher image. The
// result is the output file name without extension.
func RenderOutputName(tmpl, flasher string, format Format) (string, error) {
	if tmpl == "" {
		tmpl = DefaultOutputName
	}

	t, err := template.New("output-name").Funcs(sprig.FuncMap()).Parse(tmpl)
	if err != nil {
		return "", err
	}

	base := filepath.Base(flasher)
	fields := outputNameFields{
		Name:    strings.TrimSuffix(base, filepath.Ext(base)),
		Flasher: base,
		Format:  string(format),
	}

	var out bytes.Buffer
	if err := t.Execute(&out, fields); err != nil {
		return "", err
	}

	name := strings.TrimSpace(out.String())
	switch {
	case name == "", name == ".", name == "..":
		return "", fmt.Errorf("'%s' expands to an unusable name '%s'", tmpl, name)
	case strings.ContainsRune(name, filepath.Separator):
		return "", fmt.Errorf("'%s' expands to '%s' which contains a path separator", tmpl, name)
	}

	return name, nil
}
