package sandbox

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"
)

// sshPort is the container port the SSH server listens on.
const sshPort = nat.Port("22/tcp")

// ContainerInfo is what the manager needs to know about an existing container.
type ContainerInfo struct {
	ID      string
	Name    string
	Image   string
	Running bool
	// HostPort is the host port bound to the SSH port, 0 if unbound.
	HostPort int
}

// CreateSpec describes a container to create.
type CreateSpec struct {
	Name     string
	Image    string
	Cmd      []string
	HostIP   string
	HostPort int
}

// Engine is the subset of container-runtime operations the manager uses.
// This abstraction allows faking the runtime in tests.
type Engine interface {
	// FindContainer returns the container with exactly this name in any
	// state, or nil if there is none.
	FindContainer(ctx context.Context, name string) (*ContainerInfo, error)
	StartContainer(ctx context.Context, id string) error
	ImageExists(ctx context.Context, ref string) (bool, error)
	PullImage(ctx context.Context, ref string) error
	CreateContainer(ctx context.Context, spec CreateSpec) (string, error)
}

// DockerEngine implements Engine with the Docker Engine API.
type DockerEngine struct {
	cli *client.Client
}

// NewDockerEngine connects to the daemon described by the DOCKER_* environment.
func NewDockerEngine() (*DockerEngine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &DockerEngine{cli: cli}, nil
}

// Close releases the client's connections.
func (d *DockerEngine) Close() error {
	return d.cli.Close()
}

// FindContainer looks the container up by name. The name filter matches
// substrings, so results are narrowed to an exact match.
func (d *DockerEngine) FindContainer(ctx context.Context, name string) (*ContainerInfo, error) {
	list, err := d.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	for _, c := range list {
		for _, n := range c.Names {
			if strings.TrimPrefix(n, "/") != name {
				continue
			}
			return d.inspect(ctx, c.ID)
		}
	}
	return nil, nil
}

func (d *DockerEngine) inspect(ctx context.Context, id string) (*ContainerInfo, error) {
	info, err := d.cli.ContainerInspect(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("inspect container %s: %w", id, err)
	}

	ci := &ContainerInfo{
		ID:   info.ID,
		Name: strings.TrimPrefix(info.Name, "/"),
	}
	if info.Config != nil {
		ci.Image = info.Config.Image
	}
	if info.State != nil {
		ci.Running = info.State.Running
	}
	if info.HostConfig != nil {
		for _, b := range info.HostConfig.PortBindings[sshPort] {
			if p, err := strconv.Atoi(b.HostPort); err == nil {
				ci.HostPort = p
				break
			}
		}
	}
	return ci, nil
}

// StartContainer starts a stopped container.
func (d *DockerEngine) StartContainer(ctx context.Context, id string) error {
	if err := d.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container %s: %w", id, err)
	}
	return nil
}

// ImageExists reports whether ref is present in the local image store.
func (d *DockerEngine) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, _, err := d.cli.ImageInspectWithRaw(ctx, ref)
	if err == nil {
		return true, nil
	}
	if errdefs.IsNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("inspect image %s: %w", ref, err)
}

// PullImage fetches ref and blocks until the pull completes.
func (d *DockerEngine) PullImage(ctx context.Context, ref string) error {
	rc, err := d.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	defer rc.Close()

	// The pull only finishes once the progress stream is consumed.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	return nil
}

// CreateContainer creates the sandbox container with the SSH port published
// and an always-restart policy.
func (d *DockerEngine) CreateContainer(ctx context.Context, spec CreateSpec) (string, error) {
	cfg := &container.Config{
		Image:        spec.Image,
		Cmd:          spec.Cmd,
		Tty:          true,
		OpenStdin:    true,
		ExposedPorts: nat.PortSet{sshPort: struct{}{}},
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			sshPort: []nat.PortBinding{{HostIP: spec.HostIP, HostPort: strconv.Itoa(spec.HostPort)}},
		},
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyAlways},
	}

	resp, err := d.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return "", fmt.Errorf("create container %s: %w", spec.Name, err)
	}
	return resp.ID, nil
}

// Verify DockerEngine implements Engine at compile time.
var _ Engine = (*DockerEngine)(nil)
