package storage

import (
	"os"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/denysvitali/filemanager-go/internal/models"
)

// GetServerInfo returns server information
func (m *Manager) GetServerInfo() models.ServerInfo {
	return models.ServerInfo{
		StartTime: m.startTime,
		BaseDir:   m.baseDir,
		Stats:     m.GetSystemStats(),
	}
}

// DiskUsage returns usage of the filesystem holding the base directory
func (m *Manager) DiskUsage() models.DiskStats {
	usage, err := disk.Usage(m.baseDir)
	if err != nil {
		m.logger.Warnf("Failed to get disk usage: %v", err)
		return models.DiskStats{}
	}
	return models.DiskStats{
		Total:   usage.Total,
		Used:    usage.Used,
		Free:    usage.Free,
		Percent: usage.UsedPercent,
	}
}

// GetSystemStats returns process statistics using gopsutil
func (m *Manager) GetSystemStats() models.SystemStats {
	stats := models.SystemStats{Disk: m.DiskUsage()}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.logger.Warnf("Failed to get process info: %v", err)
		return stats
	}

	if cpuPercent, err := proc.CPUPercent(); err != nil {
		m.logger.Warnf("Failed to get CPU percent: %v", err)
	} else {
		stats.CPUPercent = cpuPercent
	}

	if memInfo, err := proc.MemoryInfo(); err != nil {
		m.logger.Warnf("Failed to get memory info: %v", err)
	} else {
		stats.Memory.RSS = memInfo.RSS
		stats.Memory.VMS = memInfo.VMS
	}

	if memPercent, err := proc.MemoryPercent(); err != nil {
		m.logger.Warnf("Failed to get memory percent: %v", err)
	} else {
		stats.Memory.Percent = memPercent
	}

	return stats
}
