//go:build windows

package transport

import (
	"os"
)

func terminateProcess(p *os.Process) {
	p.Kill()
}
