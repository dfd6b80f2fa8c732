//go:build !windows && !linux

package forgelog

import "golang.org/x/sys/unix"

// isTerminal checks if the file descriptor is a terminal on BSD-family
// Unix systems (macOS included) via the TIOCGETA ioctl.
func isTerminal(fd uintptr) bool {
	_, err := unix.IoctlGetTermios(int(fd), unix.TIOCGETA)
	return err == nil
}
