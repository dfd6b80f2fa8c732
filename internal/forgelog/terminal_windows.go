//go:build windows

package forgelog

import "golang.org/x/sys/windows"

// isTerminal checks if the file descriptor is a terminal on Windows via
// GetConsoleMode.
func isTerminal(fd uintptr) bool {
	var mode uint32
	err := windows.GetConsoleMode(windows.Handle(fd), &mode)
	return err == nil
}
