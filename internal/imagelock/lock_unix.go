//go:build unix

package imagelock

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

func lock(fd uintptr) (func() error, error) {
	if err := unix.Flock(int(fd), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("flock: %w", err)
	}

	return func() error {
		return unix.Flock(int(fd), unix.LOCK_UN)
	}, nil
}
