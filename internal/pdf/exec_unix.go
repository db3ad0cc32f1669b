//go:build unix

package pdf

import (
	"os/exec"
	"syscall"
)

// prepareRasterCommand puts pdftoppm in its own process group. A terminal
// interrupt reaches it only through context cancellation.
func prepareRasterCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
