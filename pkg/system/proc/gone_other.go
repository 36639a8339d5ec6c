//go:build !linux

package proc

import (
	"errors"
	"io/fs"
)

// IsGone reports whether err means the process no longer exists.
func IsGone(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
