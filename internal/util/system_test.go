package util

import "testing"

func TestGetSystemInfo(t *testing.T) {
	info := GetSystemInfo()
	if info.NumCPU < 1 {
		t.Errorf("NumCPU = %d, want >= 1", info.NumCPU)
	}
	if info.OS == "" || info.Arch == "" {
		t.Error("OS and Arch should be populated")
	}
}

func TestSampleMemoryBytes(t *testing.T) {
	// 320x240 4:2:0 frame is 115200 bytes; 50 frames across 5 buffers.
	got := SampleMemoryBytes(320, 240, 50)
	want := uint64(115200) * 50 * 5
	if got != want {
		t.Errorf("SampleMemoryBytes = %d, want %d", got, want)
	}
}

func TestEnoughMemory(t *testing.T) {
	if !EnoughMemory(0, 0.5) {
		t.Error("zero bytes should always fit")
	}
}
