package util

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// SystemInfo contains information about the host system.
type SystemInfo struct {
	Hostname string
	NumCPU   int
	OS       string
	Arch     string
}

// GetSystemInfo collects system information.
func GetSystemInfo() SystemInfo {
	hostname, _ := os.Hostname()
	return SystemInfo{
		Hostname: hostname,
		NumCPU:   runtime.NumCPU(),
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
	}
}

// AvailableMemoryBytes returns the available memory in bytes.
// On Linux, this reads MemAvailable from /proc/meminfo.
// Returns 0 if memory cannot be determined.
func AvailableMemoryBytes() uint64 {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "MemAvailable:") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				kb, err := strconv.ParseUint(fields[1], 10, 64)
				if err == nil {
					return kb * 1024
				}
			}
		}
	}
	return 0
}

// SampleMemoryBytes estimates the resident pixel memory of one analysis
// run: the GOP sample plus the driver's filtered, reconstruction,
// reference, and stage-2 scratch buffers at the given geometry.
func SampleMemoryBytes(width, height, sampleFrames int) uint64 {
	frame := uint64(width) * uint64(height) * 3 / 2
	buffers := uint64(5)
	return frame * uint64(sampleFrames) * buffers
}

// EnoughMemory reports whether the host has headroom for the estimated
// sample memory, using at most the given fraction of available memory.
// Unknown availability is treated as enough.
func EnoughMemory(needBytes uint64, memFraction float64) bool {
	available := AvailableMemoryBytes()
	if available == 0 {
		return true
	}
	return float64(needBytes) <= float64(available)*memFraction
}
