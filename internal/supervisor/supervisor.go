// Package supervisor manages the lifecycle of gatekeeper containers: one
// long-running container per tool, with its port published on loopback and
// the shared artifact directory mounted in.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"gateclient/internal/tool"
)

// Supervisor starts, stops, and inspects gatekeeper containers.
type Supervisor struct {
	client   *client.Client
	registry *tool.Registry
	config   Config
	logger   *slog.Logger
	http     *http.Client
}

// GatekeeperStatus describes one gatekeeper container.
type GatekeeperStatus struct {
	Tool        string `json:"tool"`
	ContainerID string `json:"containerId,omitempty"`
	Image       string `json:"image,omitempty"`
	State       string `json:"state"` // running, exited, absent, ...
	Ready       bool   `json:"ready"` // status endpoint answered
}

// New creates a supervisor over the host Docker daemon.
func New(registry *tool.Registry, cfg Config) (*Supervisor, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &Supervisor{
		client:   dockerClient,
		registry: registry,
		config:   cfg.withDefaults(),
		logger:   slog.With("component", "supervisor"),
		http:     &http.Client{Timeout: 5 * time.Second},
	}, nil
}

// Up starts the gatekeeper for one tool and waits until its status endpoint
// answers. Model loading can take minutes, so the ready timeout is long.
func (s *Supervisor) Up(ctx context.Context, toolName string) error {
	t, ok := s.registry.Get(toolName)
	if !ok {
		return fmt.Errorf("unknown tool %q", toolName)
	}
	img, ok := s.config.Images[toolName]
	if !ok {
		return fmt.Errorf("no image configured for tool %q", toolName)
	}

	logger := s.logger.With("tool", toolName, "image", img)

	if existing, err := s.find(ctx, toolName); err != nil {
		return err
	} else if existing != nil {
		if existing.State == "running" {
			logger.Info("Gatekeeper already running", "containerId", existing.ID[:12])
			return s.waitReady(ctx, t)
		}
		// Replace a stopped leftover rather than trying to restart it with
		// possibly stale config.
		s.remove(ctx, existing.ID)
	}

	if err := s.pullIfNeeded(ctx, img); err != nil {
		return fmt.Errorf("pull %s: %w", img, err)
	}

	id, err := s.create(ctx, t, img)
	if err != nil {
		return fmt.Errorf("create gatekeeper %s: %w", toolName, err)
	}
	if err := s.client.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("start gatekeeper %s: %w", toolName, err)
	}

	logger.Info("Gatekeeper started", "containerId", id[:12], "port", t.Port)
	return s.waitReady(ctx, t)
}

// UpAll starts every tool that has an image configured.
func (s *Supervisor) UpAll(ctx context.Context) error {
	for _, name := range s.registry.Names() {
		if _, ok := s.config.Images[name]; !ok {
			s.logger.Debug("Skipping tool without image", "tool", name)
			continue
		}
		if err := s.Up(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Down stops and removes the gatekeeper for one tool.
func (s *Supervisor) Down(ctx context.Context, toolName string) error {
	existing, err := s.find(ctx, toolName)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	s.remove(ctx, existing.ID)
	s.logger.Info("Gatekeeper stopped", "tool", toolName)
	return nil
}

// DownAll stops every managed gatekeeper container.
func (s *Supervisor) DownAll(ctx context.Context) error {
	containers, err := s.managed(ctx)
	if err != nil {
		return err
	}
	for _, c := range containers {
		s.remove(ctx, c.ID)
		s.logger.Info("Gatekeeper stopped", "tool", c.Labels["gatekeeper.tool"])
	}
	return nil
}

// Status reports the container state and readiness of every registered tool.
func (s *Supervisor) Status(ctx context.Context) ([]GatekeeperStatus, error) {
	containers, err := s.managed(ctx)
	if err != nil {
		return nil, err
	}

	byTool := make(map[string]*container.Summary, len(containers))
	for i := range containers {
		c := &containers[i]
		byTool[c.Labels["gatekeeper.tool"]] = c
	}

	statuses := make([]GatekeeperStatus, 0, len(s.registry.Names()))
	for _, name := range s.registry.Names() {
		status := GatekeeperStatus{Tool: name, State: "absent"}
		if c, ok := byTool[name]; ok {
			status.ContainerID = c.ID
			status.Image = c.Image
			status.State = c.State
			if c.State == "running" {
				t, _ := s.registry.Get(name)
				status.Ready = s.ping(ctx, t)
			}
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (s *Supervisor) create(ctx context.Context, t tool.Tool, img string) (string, error) {
	port, err := nat.NewPort("tcp", fmt.Sprintf("%d", t.Port))
	if err != nil {
		return "", err
	}

	containerConfig := &container.Config{
		Image: img,
		ExposedPorts: nat.PortSet{
			port: struct{}{},
		},
		Labels: map[string]string{
			"gatekeeper.tool": t.Name,
			"managed-by":      managedByLabel,
		},
	}

	hostConfig := &container.HostConfig{
		// Gatekeepers are only ever reached from this host.
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{HostIP: t.Host, HostPort: fmt.Sprintf("%d", t.Port)}},
		},
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: s.config.SharedDir,
				Target: "/shared",
			},
		},
		ExtraHosts: s.config.ExtraHosts,
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyUnlessStopped,
		},
	}

	resp, err := s.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, containerName(t.Name))
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (s *Supervisor) pullIfNeeded(ctx context.Context, imageName string) error {
	_, err := s.client.ImageInspect(ctx, imageName)
	if err == nil {
		return nil
	}

	reader, err := s.client.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

// waitReady polls the gatekeeper's status endpoint until it answers or the
// ready timeout elapses.
func (s *Supervisor) waitReady(ctx context.Context, t tool.Tool) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ReadyTimeout)
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		if s.ping(ctx, t) {
			s.logger.Info("Gatekeeper ready", "tool", t.Name)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("gatekeeper %s not ready after %s", t.Name, s.config.ReadyTimeout)
		case <-ticker.C:
		}
	}
}

func (s *Supervisor) ping(ctx context.Context, t tool.Tool) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.StatusURL(), nil)
	if err != nil {
		return false
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// find returns the managed container for a tool, if any.
func (s *Supervisor) find(ctx context.Context, toolName string) (*container.Summary, error) {
	containers, err := s.client.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", "managed-by="+managedByLabel),
			filters.Arg("label", "gatekeeper.tool="+toolName),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	if len(containers) == 0 {
		return nil, nil
	}
	return &containers[0], nil
}

// managed lists all containers owned by the supervisor.
func (s *Supervisor) managed(ctx context.Context) ([]container.Summary, error) {
	containers, err := s.client.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", "managed-by="+managedByLabel),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	return containers, nil
}

func (s *Supervisor) remove(ctx context.Context, containerID string) {
	stopTimeout := s.config.StopTimeout
	_ = s.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &stopTimeout})
	_ = s.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
}
