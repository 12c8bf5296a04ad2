package menu

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ExecSelf replaces the running process with a fresh copy of the same
// binary and arguments. It only returns on failure.
func ExecSelf() error {
	exe, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "locate executable")
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return errors.Wrap(err, "resolve executable")
	}
	return errors.Wrap(unix.Exec(exe, os.Args, os.Environ()), "exec")
}
