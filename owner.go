package unwrap

import (
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// Owner is the identity that invoked the tool through sudo.
type Owner struct {
	UID int
	GID int
}

// InvokingOwner returns the unprivileged user that elevated to run the tool,
// or nil when not running elevated.
func InvokingOwner() *Owner {
	return ownerFromEnv(unix.Geteuid(), os.Getenv)
}

func ownerFromEnv(euid int, getenv func(string) string) *Owner {
	if euid != 0 {
		return nil
	}

	uid, err := strconv.Atoi(getenv("SUDO_UID"))
	if err != nil || uid == 0 {
		return nil
	}

	gid, err := strconv.Atoi(getenv("SUDO_GID"))
	if err != nil {
		gid = -1
	}

	return &Owner{UID: uid, GID: gid}
}
