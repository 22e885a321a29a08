package unwrap

import (
	"log"
	"os"
)

const (
	logPrefix     = "[LOG] "
	warningPrefix = "[WARNING] "
	errorPrefix   = "[ERROR] "
)

// exit is swapped out by tests that exercise Fatalf.
var exit = os.Exit

func init() {
	log.SetFlags(0)
}

// Logf prints an informational progress line.
func Logf(format string, args ...interface{}) {
	log.Printf(logPrefix+format, args...)
}

// Warningf prints a non-terminal warning.
func Warningf(format string, args ...interface{}) {
	log.Printf(warningPrefix+format, args...)
}

// Fatalf prints an error line and terminates the process. Any cleanup must
// already have run: deferred functions are not executed.
func Fatalf(format string, args ...interface{}) {
	log.Printf(errorPrefix+format, args...)
	exit(1)
}
