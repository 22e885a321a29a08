package unwrap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/resin-os/unwrap"
)

func TestRenderOutputName(t *testing.T) {
	tests := []struct {
		tmpl   string
		format unwrap.Format
		want   string
	}{
		{"", unwrap.FormatNone, "resin-intel-nuc-2.12"},
		{"{{ .Name }}", unwrap.FormatVDI, "resin-intel-nuc-2.12"},
		{"{{ .Name }}-{{ .Format }}", unwrap.FormatVMDK, "resin-intel-nuc-2.12-vmdk"},
		{`{{ .Name | replace "resin-" "balena-" }}`, unwrap.FormatNone, "balena-intel-nuc-2.12"},
		{"{{ .Flasher }}", unwrap.FormatNone, "resin-intel-nuc-2.12.img"},
	}

	for _, tc := range tests {
		name, err := unwrap.RenderOutputName(tc.tmpl, "/images/resin-intel-nuc-2.12.img", tc.format)
		assert.NoError(t, err, tc.tmpl)
		assert.Equal(t, tc.want, name, tc.tmpl)
	}
}

func TestRenderOutputName_Invalid(t *testing.T) {
	for _, tmpl := range []string{"{{ .Name", "{{ .Missing }}", "  ", "..", "out/{{ .Name }}"} {
		_, err := unwrap.RenderOutputName(tmpl, "/images/flasher.img", unwrap.FormatNone)
		assert.Error(t, err, tmpl)
	}
}
