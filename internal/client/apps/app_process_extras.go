package apps

import (
	"fmt"
	"slices"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

// ProcessStats is a point-in-time snapshot of an app process and its
// children, shaped for the control plane JSON API.
type ProcessStats struct {
	ProcessName   string                  `json:"processName"`
	PID           int32                   `json:"pid"`
	Status        []string                `json:"status"`
	Cmdline       []string                `json:"cmdline"`
	CWD           string                  `json:"cwd"`
	Environ       []string                `json:"environ"`
	Exe           string                  `json:"exe"`
	Gids          []uint32                `json:"gids"`
	Uids          []uint32                `json:"uids"`
	Nice          int32                   `json:"nice"`
	Username      string                  `json:"username"`
	Connections   []net.ConnectionStat    `json:"connections"`
	CPUPercent    float64                 `json:"cpuPercent"`
	CPUTimes      *cpu.TimesStat          `json:"cpuTimes"`
	NumThreads    int32                   `json:"numThreads"`
	MemoryPercent float32                 `json:"memoryPercent"`
	MemoryInfo    *process.MemoryInfoStat `json:"memoryInfo"`
	// Uptime is in milliseconds
	Uptime   int64           `json:"uptime"`
	Children []*ProcessStats `json:"children"`
}

// orZero returns the value from a gopsutil getter, falling back to the zero
// value when the platform can't provide it. Only the process name is
// treated as required.
func orZero[T any](val T, err error) T {
	if err != nil {
		var zero T
		return zero
	}
	return val
}

func NewProcessStats(p *process.Process) (*ProcessStats, error) {
	processName, err := p.Name()
	if err != nil {
		return nil, fmt.Errorf("failed to get process name: %w", err)
	}

	var uptime int64
	if createTime, err := p.CreateTime(); err == nil {
		uptime = time.Now().UnixMilli() - createTime
	}

	connections := orZero(p.Connections())
	if connections == nil {
		connections = []net.ConnectionStat{}
	}

	childProcesses := orZero(p.Children())
	children := make([]*ProcessStats, 0, len(childProcesses))
	for _, child := range childProcesses {
		childStats, err := NewProcessStats(child)
		if err != nil {
			continue
		}
		children = append(children, childStats)
	}

	stats := &ProcessStats{
		ProcessName:   processName,
		PID:           p.Pid,
		Status:        orZero(p.Status()),
		Cmdline:       orZero(p.CmdlineSlice()),
		CWD:           orZero(p.Cwd()),
		Environ:       orZero(p.Environ()),
		Exe:           orZero(p.Exe()),
		Gids:          orZero(p.Gids()),
		Uids:          orZero(p.Uids()),
		Nice:          orZero(p.Nice()),
		Username:      orZero(p.Username()),
		Connections:   connections,
		CPUPercent:    orZero(p.CPUPercent()),
		CPUTimes:      orZero(p.Times()),
		NumThreads:    orZero(p.NumThreads()),
		MemoryPercent: orZero(p.MemoryPercent()),
		MemoryInfo:    orZero(p.MemoryInfo()),
		Uptime:        uptime,
		Children:      children,
	}

	if stats.Status == nil {
		stats.Status = []string{}
	}
	if stats.Cmdline == nil {
		stats.Cmdline = []string{}
	}
	if stats.Environ == nil {
		stats.Environ = []string{}
	}
	if stats.Gids == nil {
		stats.Gids = []uint32{}
	}
	if stats.Uids == nil {
		stats.Uids = []uint32{}
	}

	return stats, nil
}

// ProcessListenPorts walks the process tree and collects every port the
// app or its children are listening on, sorted and deduplicated.
func ProcessListenPorts(proc *process.Process) []uint32 {
	ports := make([]uint32, 0)

	if proc == nil {
		return ports
	}

	connections, _ := proc.Connections()
	for _, connection := range connections {
		if connection.Laddr.Port != 0 && connection.Status == "LISTEN" {
			ports = append(ports, connection.Laddr.Port)
		}
	}

	children, _ := proc.Children()
	for _, child := range children {
		ports = append(ports, ProcessListenPorts(child)...)
	}

	slices.Sort(ports)
	return slices.Compact(ports)
}
