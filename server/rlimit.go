package server

import (
	"fmt"

	"golang.org/x/sys/unix" // syscall package is deprecated
)

// setRlimit raises RLIMIT_NOFILE so a store holding millions of entries and
// serving many concurrent connections doesn't starve for file descriptors.
// It is best-effort: a container without CAP_SYS_RESOURCE will fail with
// "operation not permitted", which the caller logs and ignores rather than
// treats as fatal.
//
// 1. http://0pointer.net/blog/file-descriptor-limits.html
// 2. https://github.com/systemd/systemd/blob/e7901aba1480db21e06e21cef4f6486ad71b2ec5/src/basic/rlimit-util.c#L373
// 3. https://github.com/golang/go/issues/46279
func setRlimit() error {
	var targetRlimit uint64 = 512_000 // value taken from link 1 above.
	var currentRlimit unix.Rlimit
	var newRlimit unix.Rlimit

	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &currentRlimit); err != nil {
		return fmt.Errorf("occlusion/server: getrlimit: %w", err)
	}

	newRlimit.Cur = currentRlimit.Cur
	newRlimit.Max = currentRlimit.Max

	if newRlimit.Max < targetRlimit {
		newRlimit.Max = targetRlimit
	}
	newRlimit.Cur = newRlimit.Max

	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &newRlimit); err != nil {
		return fmt.Errorf("occlusion/server: setrlimit: %w", err)
	}
	return nil
}
