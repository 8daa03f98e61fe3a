package models

import "time"

// ServerInfo describes the running process
type ServerInfo struct {
	StartTime time.Time   `json:"start_time"`
	BaseDir   string      `json:"base_dir"`
	Stats     SystemStats `json:"stats"`
}

// ServerInfoResponse is returned by /server_info
type ServerInfoResponse struct {
	StartTime time.Time   `json:"start_time"`
	Uptime    float64     `json:"uptime"`
	Resources SystemStats `json:"resources"`
}

// Response builds the public view of the info as of now. The base
// directory is left out.
func (i ServerInfo) Response(now time.Time) ServerInfoResponse {
	return ServerInfoResponse{
		StartTime: i.StartTime,
		Uptime:    now.Sub(i.StartTime).Seconds(),
		Resources: i.Stats,
	}
}

// SystemStats contains process and disk statistics
type SystemStats struct {
	CPUPercent float64     `json:"cpu_percent"`
	Memory     MemoryStats `json:"memory"`
	Disk       DiskStats   `json:"disk"`
}

// MemoryStats contains memory usage of the process
type MemoryStats struct {
	RSS     uint64  `json:"rss"`
	VMS     uint64  `json:"vms"`
	Percent float32 `json:"percent"`
}

// DiskStats contains usage of the filesystem holding the base directory
type DiskStats struct {
	Total   uint64  `json:"total"`
	Used    uint64  `json:"used"`
	Free    uint64  `json:"free"`
	Percent float64 `json:"percent"`
}
