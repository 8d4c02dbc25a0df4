//go:build darwin || freebsd || netbsd || openbsd
// +build darwin freebsd netbsd openbsd

package vfs

import "golang.org/x/sys/unix"

func isTerminal(fd int) bool {
	_, err := unix.IoctlGetTermios(fd, unix.TIOCGETA)
	return err == nil
}
