//go:build !unix

package report

import (
	"os"

	"github.com/shirou/gopsutil/v4/process"
)

// PeakRSS returns the current resident set size; peak usage is not
// available on this platform.
func PeakRSS() (uint64, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	mi, err := p.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return mi.RSS, nil
}
