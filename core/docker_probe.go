//go:build !nodocker

package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/client"
)

// DockerCheck probes that a named container exists and is running. A
// container in restarting state degrades the check; stopped or missing
// fails it.
type DockerCheck struct {
	name          string
	interval      time.Duration
	containerName string
	cli           *client.Client
}

// NewDockerCheck creates a container liveness probe from configuration.
// Params: container (required). The client is created lazily on first
// run so a stopped docker daemon shows up as a check failure, not a
// startup error.
func NewDockerCheck(config CheckConfig) (*DockerCheck, error) {
	containerName := config.Params["container"]
	if containerName == "" {
		return nil, fmt.Errorf("docker check %q: container param is required", config.Name)
	}

	return &DockerCheck{
		name:          config.Name,
		interval:      config.Interval(),
		containerName: containerName,
	}, nil
}

// Name returns the check name
func (c *DockerCheck) Name() string { return c.name }

// Interval returns the probe interval
func (c *DockerCheck) Interval() time.Duration { return c.interval }

// Run inspects the container state once
func (c *DockerCheck) Run(ctx context.Context) CheckResult {
	result := CheckResult{
		CheckName: c.name,
		Timestamp: time.Now(),
		Metadata:  map[string]string{"container": c.containerName},
	}

	start := time.Now()

	if c.cli == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			result.Status = StatusFail
			result.ErrorMessage = fmt.Sprintf("failed to create docker client: %v", err)
			result.DurationMS = time.Since(start).Milliseconds()
			return result
		}
		c.cli = cli
	}

	inspect, err := c.cli.ContainerInspect(ctx, c.containerName)
	result.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		result.Status = StatusFail
		if client.IsErrNotFound(err) {
			result.ErrorMessage = fmt.Sprintf("container %s not found", c.containerName)
		} else {
			result.ErrorMessage = fmt.Sprintf("failed to inspect container: %v", err)
		}
		return result
	}

	state := ""
	if inspect.State != nil {
		state = inspect.State.Status
	}
	result.Metadata["state"] = state

	switch strings.ToLower(state) {
	case "running":
		result.Status = StatusPass
	case "restarting":
		result.Status = StatusDegraded
		result.ErrorMessage = fmt.Sprintf("container %s is restarting", c.containerName)
	default:
		result.Status = StatusFail
		result.ErrorMessage = fmt.Sprintf("container %s is %s", c.containerName, state)
	}

	return result
}
