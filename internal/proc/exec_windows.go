//go:build windows

package proc

import (
	"os/exec"
	"syscall"
)

// hideWindow keeps console windows from flashing up for child processes
func hideWindow(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: 0x08000000, // CREATE_NO_WINDOW
	}
}
