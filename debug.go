package unwrap

import (
	"fmt"
	"log"
	"os"
)

/*
DebugShell launches an interactive shell in dir for investigating a failed
run while the images are still attached and mounted.
*/
func DebugShell(shell, dir string) {
	if len(shell) == 0 {
		return
	}

	pa := os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
		Dir:   dir,
	}

	// Start an interactive shell for debug.
	log.Printf(">>> Starting a debug shell")
	if proc, err := os.StartProcess(shell, []string{shell}, &pa); err != nil {
		fmt.Printf("Failed: %s\n", err)
	} else {
		proc.Wait()
	}
}
