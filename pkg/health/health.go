package health

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// ComponentHealth represents the health status of a single component
type ComponentHealth struct {
	Name        string      `json:"name"`
	Status      Status      `json:"status"`
	Description string      `json:"description,omitempty"`
	LastChecked time.Time   `json:"last_checked"`
	Details     interface{} `json:"details,omitempty"`
}

// HostStats carries host-level resource usage
type HostStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemUsedMB     uint64  `json:"mem_used_mb"`
	MemUsedPct    float64 `json:"mem_used_percent"`
	StatsGathered bool    `json:"stats_gathered"`
}

// ServerHealth represents overall server health
type ServerHealth struct {
	Status            Status            `json:"status"`
	Uptime            int64             `json:"uptime_seconds"`
	Timestamp         time.Time         `json:"timestamp"`
	ActiveConnections int               `json:"active_connections"`
	BusDesignated     bool              `json:"bus_designated"`
	Goroutines        int               `json:"goroutines"`
	MemoryMB          uint64            `json:"memory_mb"`
	Host              HostStats         `json:"host"`
	Components        []ComponentHealth `json:"components"`
}

// Monitor tracks server health metrics
type Monitor struct {
	startTime  time.Time
	mu         sync.RWMutex
	components map[string]*ComponentHealth
}

// NewMonitor creates a new health monitor
func NewMonitor() *Monitor {
	return &Monitor{
		startTime:  time.Now(),
		components: make(map[string]*ComponentHealth),
	}
}

// SetComponentStatus updates the status of a component
func (m *Monitor) SetComponentStatus(name string, status Status, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = &ComponentHealth{
		Name:        name,
		Status:      status,
		Description: description,
		LastChecked: time.Now(),
	}
}

// GetHealth returns the current server health
func (m *Monitor) GetHealth(activeConnections int, busDesignated bool) *ServerHealth {
	m.mu.RLock()
	components := make([]ComponentHealth, 0, len(m.components))
	overallStatus := StatusHealthy
	for _, comp := range m.components {
		components = append(components, *comp)
		if comp.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
		} else if comp.Status == StatusDegraded && overallStatus == StatusHealthy {
			overallStatus = StatusDegraded
		}
	}
	m.mu.RUnlock()

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	return &ServerHealth{
		Status:            overallStatus,
		Uptime:            int64(time.Since(m.startTime).Seconds()),
		Timestamp:         time.Now(),
		ActiveConnections: activeConnections,
		BusDesignated:     busDesignated,
		Goroutines:        runtime.NumGoroutine(),
		MemoryMB:          stats.Alloc / 1024 / 1024,
		Host:              gatherHostStats(),
		Components:        components,
	}
}

// gatherHostStats samples host CPU and memory. Failures leave the zero
// value with StatsGathered false; health reporting never fails on them.
func gatherHostStats() HostStats {
	var hs HostStats

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		hs.CPUPercent = percents[0]
		hs.StatsGathered = true
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		hs.MemUsedMB = vm.Used / 1024 / 1024
		hs.MemUsedPct = vm.UsedPercent
		hs.StatsGathered = true
	}

	return hs
}
