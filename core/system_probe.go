package core

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemCheck probes host CPU and memory utilization. Crossing the warn
// threshold degrades the check; crossing the fail threshold fails it.
type SystemCheck struct {
	name      string
	interval  time.Duration
	cpuWarn   float64
	cpuFail   float64
	memWarn   float64
	memFail   float64
	sampleFor time.Duration
}

// NewSystemCheck creates a system resource probe from configuration.
// Params (all optional): cpu_warn_percent (default 80), cpu_fail_percent
// (default 95), mem_warn_percent (default 85), mem_fail_percent
// (default 95).
func NewSystemCheck(config CheckConfig) (*SystemCheck, error) {
	c := &SystemCheck{
		name:      config.Name,
		interval:  config.Interval(),
		cpuWarn:   80,
		cpuFail:   95,
		memWarn:   85,
		memFail:   95,
		sampleFor: time.Second,
	}

	for key, dst := range map[string]*float64{
		"cpu_warn_percent": &c.cpuWarn,
		"cpu_fail_percent": &c.cpuFail,
		"mem_warn_percent": &c.memWarn,
		"mem_fail_percent": &c.memFail,
	} {
		if v := config.Params[key]; v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f <= 0 || f > 100 {
				return nil, fmt.Errorf("system check %q: invalid %s: %q", config.Name, key, v)
			}
			*dst = f
		}
	}

	if c.cpuWarn > c.cpuFail || c.memWarn > c.memFail {
		return nil, fmt.Errorf("system check %q: warn thresholds must not exceed fail thresholds", config.Name)
	}

	return c, nil
}

// Name returns the check name
func (c *SystemCheck) Name() string { return c.name }

// Interval returns the probe interval
func (c *SystemCheck) Interval() time.Duration { return c.interval }

// Run samples CPU and memory once
func (c *SystemCheck) Run(ctx context.Context) CheckResult {
	result := CheckResult{
		CheckName: c.name,
		Timestamp: time.Now(),
		Metadata:  map[string]string{},
	}

	start := time.Now()

	cpuPercents, err := cpu.PercentWithContext(ctx, c.sampleFor, false)
	if err != nil || len(cpuPercents) == 0 {
		result.Status = StatusFail
		result.ErrorMessage = fmt.Sprintf("failed to sample cpu: %v", err)
		result.DurationMS = time.Since(start).Milliseconds()
		return result
	}
	cpuPercent := cpuPercents[0]

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		result.Status = StatusFail
		result.ErrorMessage = fmt.Sprintf("failed to sample memory: %v", err)
		result.DurationMS = time.Since(start).Milliseconds()
		return result
	}

	result.DurationMS = time.Since(start).Milliseconds()
	result.Metadata["cpu_percent"] = fmt.Sprintf("%.1f", cpuPercent)
	result.Metadata["mem_percent"] = fmt.Sprintf("%.1f", vm.UsedPercent)

	switch {
	case cpuPercent >= c.cpuFail:
		result.Status = StatusFail
		result.ErrorMessage = fmt.Sprintf("cpu at %.1f%% (fail threshold %.1f%%)", cpuPercent, c.cpuFail)
	case vm.UsedPercent >= c.memFail:
		result.Status = StatusFail
		result.ErrorMessage = fmt.Sprintf("memory at %.1f%% (fail threshold %.1f%%)", vm.UsedPercent, c.memFail)
	case cpuPercent >= c.cpuWarn:
		result.Status = StatusDegraded
		result.ErrorMessage = fmt.Sprintf("cpu at %.1f%% (warn threshold %.1f%%)", cpuPercent, c.cpuWarn)
	case vm.UsedPercent >= c.memWarn:
		result.Status = StatusDegraded
		result.ErrorMessage = fmt.Sprintf("memory at %.1f%% (warn threshold %.1f%%)", vm.UsedPercent, c.memWarn)
	default:
		result.Status = StatusPass
	}

	return result
}
