//go:build linux

package forgelog

import "golang.org/x/sys/unix"

// isTerminal checks if the file descriptor is a terminal on Linux via the
// TCGETS ioctl.
func isTerminal(fd uintptr) bool {
	_, err := unix.IoctlGetTermios(int(fd), unix.TCGETS)
	return err == nil
}
