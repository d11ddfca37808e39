//go:build !linux && !darwin && !freebsd

package pcap

import (
	"fmt"
	"runtime"
)

// Attach is not available on this platform
func (p *FilterProgram) Attach(fd int) error {
	if err := p.attachable(); err != nil {
		return err
	}
	return fmt.Errorf("attaching filters is not supported on %s", runtime.GOOS)
}
