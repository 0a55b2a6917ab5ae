// Package systeminfo collects the host summary attached to each report, so a
// triage artifact records where it was produced.
package systeminfo

import (
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"verdict/logger"
	"verdict/version"
)

type HostInfo struct {
	Hostname        string `json:"hostname,omitempty"`
	OS              string `json:"os,omitempty"`
	Platform        string `json:"platform,omitempty"`
	PlatformVersion string `json:"platform_version,omitempty"`
	KernelVersion   string `json:"kernel_version,omitempty"`
	Arch            string `json:"arch"`
	CPUCount        int    `json:"cpu_count,omitempty"`
	TotalMemory     uint64 `json:"total_memory,omitempty"`
	ScannerVersion  string `json:"scanner_version"`
}

// Collect gathers the host summary. Partial failures degrade to missing
// fields rather than an error.
func Collect() *HostInfo {
	info := &HostInfo{
		Arch:           runtime.GOARCH,
		ScannerVersion: version.Version,
	}

	if h, err := host.Info(); err == nil {
		info.Hostname = h.Hostname
		info.OS = h.OS
		info.Platform = h.Platform
		info.PlatformVersion = h.PlatformVersion
		info.KernelVersion = h.KernelVersion
	} else {
		logger.Warnf("Failed to gather host details: %v", err)
	}

	if count, err := cpu.Counts(true); err == nil {
		info.CPUCount = count
	} else {
		logger.Warnf("Failed to gather CPU count: %v", err)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = vm.Total
	} else {
		logger.Warnf("Failed to gather memory size: %v", err)
	}

	return info
}
