package unwrap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"

	"github.com/alessio/shellescape"
)

// Runner runs an external program. cmdline[0] is the program, the label is
// used to prefix its output.
type Runner interface {
	Run(ctx context.Context, label string, cmdline ...string) error
}

// Command runs programs on the host, relaying their output to the log.
type Command struct{}

type commandWrapper struct {
	label  string
	buffer *bytes.Buffer
}

func newCommandWrapper(label string) *commandWrapper {
	b := bytes.Buffer{}
	return &commandWrapper{label, &b}
}

func (w commandWrapper) out(atEOF bool) {
	for {
		s, err := w.buffer.ReadString('\n')
		if err == nil {
			log.Printf("%s | %v", w.label, strings.TrimRight(s, "\n"))
		} else {
			if len(s) > 0 {
				if atEOF && err == io.EOF {
					log.Printf("%s | %v", w.label, s)
				} else {
					w.buffer.WriteString(s)
				}
			}
			break
		}
	}
}

func (w commandWrapper) Write(p []byte) (n int, err error) {
	n, err = w.buffer.Write(p)
	w.out(false)
	return
}

func (w *commandWrapper) flush() {
	w.out(true)
}

func (cmd Command) Run(ctx context.Context, label string, cmdline ...string) error {
	if len(cmdline) == 0 {
		return fmt.Errorf("%s: empty command line", label)
	}

	Logf("Running: %s", shellescape.QuoteCommand(cmdline))

	exe := exec.CommandContext(ctx, cmdline[0], cmdline[1:]...)
	w := newCommandWrapper(label)

	exe.Stdin = nil
	exe.Stdout = w
	exe.Stderr = w

	err := exe.Run()
	w.flush()
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}

	return nil
}

// Output runs the program and returns its trimmed standard output.
func (cmd Command) Output(ctx context.Context, cmdline ...string) (string, error) {
	exe := exec.CommandContext(ctx, cmdline[0], cmdline[1:]...)
	out, err := exe.Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w", shellescape.QuoteCommand(cmdline), err)
	}
	return strings.TrimSpace(string(out)), nil
}
