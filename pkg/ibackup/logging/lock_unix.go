//go:build unix

package logging

import "golang.org/x/sys/unix"

// lock takes an exclusive advisory lock so concurrent ibackup processes
// do not interleave lines.
func (w *RotatingWriter) lock() error {
	return unix.Flock(int(w.file.Fd()), unix.LOCK_EX)
}

func (w *RotatingWriter) unlock() {
	_ = unix.Flock(int(w.file.Fd()), unix.LOCK_UN)
}
