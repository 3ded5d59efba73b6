package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector implements Detector using actual platform detection.
type RealDetector struct{}

// NewDetector creates a new platform detector.
func NewDetector() Detector {
	return &RealDetector{}
}

// Detect inspects the host and resolves it to canonical names.
//
// The raw architecture comes from the kernel when gopsutil can report it,
// so a 32-bit build running on a 64-bit host still resolves to the host
// architecture. On Linux the distribution is filled in as well. gopsutil may
// return partial data alongside an error; whatever it reports is used and
// the rest falls back to runtime values. Only context cancellation is an
// error.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	info := &Info{
		OSRaw:   runtime.GOOS,
		ArchRaw: runtime.GOARCH,
	}

	stat, err := host.InfoWithContext(ctx)
	if err != nil && ctx.Err() != nil {
		return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
	}

	if stat != nil {
		if stat.KernelArch != "" {
			info.ArchRaw = stat.KernelArch
		}
		if runtime.GOOS == "linux" {
			if distro := normalize(stat.Platform); distro != "" {
				info.Distro = distro
				info.Family = mapFamily(stat.PlatformFamily)
				info.Version = normalize(stat.PlatformVersion)
			}
		}
	}

	desc := Resolve(info.OSRaw, info.ArchRaw)
	info.OS = desc.OS
	info.Arch = desc.Arch

	return info, nil
}
