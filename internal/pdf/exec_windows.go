//go:build windows

package pdf

import (
	"os/exec"
	"syscall"
)

// prepareRasterCommand 隐藏 pdftoppm 的控制台窗口
func prepareRasterCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: 0x08000000, // CREATE_NO_WINDOW
	}
}
