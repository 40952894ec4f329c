//go:build !windows

package transport

import (
	"os"
	"syscall"
)

func terminateProcess(p *os.Process) {
	p.Signal(syscall.SIGTERM)
}
