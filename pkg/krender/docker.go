package krender

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/quatton/kino/pkg/klog"
)

// containerWorkDir is where a job's work dir is mounted inside the container.
const containerWorkDir = "/manim"

// DockerRenderer runs manim inside a throwaway container per job. The job's
// work dir on the host is bind-mounted so the output lands there.
type DockerRenderer struct {
	client   *client.Client
	config   ContainerConfig
	workDir  string
	log      *klog.Logger
	pullOnce sync.Once
	pullErr  error
}

// NewDockerRenderer connects to the daemon configured by DOCKER_HOST and
// friends. workDir must be visible to the daemon at the same path.
func NewDockerRenderer(config ContainerConfig, workDir string, log *klog.Logger) (*DockerRenderer, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	if config.Image == "" {
		config.Image = DefaultImage
	}
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "kino-renders")
	}
	if log == nil {
		log = klog.Discard()
	}
	return &DockerRenderer{client: cli, config: config, workDir: workDir, log: log}, nil
}

// Ping checks that the daemon is reachable.
func (r *DockerRenderer) Ping(ctx context.Context) error {
	_, err := r.client.Ping(ctx)
	return err
}

func (r *DockerRenderer) Close() error {
	return r.client.Close()
}

func (r *DockerRenderer) ensureImage(ctx context.Context) error {
	if !r.config.PullImage {
		return nil
	}
	r.pullOnce.Do(func() {
		r.log.Info("pulling render image", "image", r.config.Image)
		rc, err := r.client.ImagePull(ctx, r.config.Image, image.PullOptions{})
		if err != nil {
			r.pullErr = fmt.Errorf("failed to pull %s: %w", r.config.Image, err)
			return
		}
		defer rc.Close()
		_, r.pullErr = io.Copy(io.Discard, rc)
	})
	return r.pullErr
}

func (r *DockerRenderer) hostConfig(dir string) (*container.HostConfig, error) {
	cpus, err := r.config.Resources.nanoCPUs()
	if err != nil {
		return nil, err
	}
	mem, err := r.config.Resources.memoryBytes()
	if err != nil {
		return nil, err
	}
	return &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: dir,
			Target: containerWorkDir,
		}},
		Resources: container.Resources{
			NanoCPUs: cpus,
			Memory:   mem,
		},
		NetworkMode: container.NetworkMode(r.config.NetworkMode),
	}, nil
}

func (r *DockerRenderer) Render(ctx context.Context, job Job) (*Output, error) {
	if err := r.ensureImage(ctx); err != nil {
		return nil, err
	}
	dir, err := prepareWorkDir(r.workDir, job)
	if err != nil {
		return nil, err
	}
	out, err := r.run(ctx, dir, job)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	return out, nil
}

func (r *DockerRenderer) run(ctx context.Context, dir string, job Job) (*Output, error) {
	hostCfg, err := r.hostConfig(dir)
	if err != nil {
		return nil, err
	}
	cfg := &container.Config{
		Image:      r.config.Image,
		Cmd:        append([]string{"manim"}, manimArgs(job, path.Join(containerWorkDir, ScriptFile), path.Join(containerWorkDir, "media"))...),
		WorkingDir: containerWorkDir,
		Env:        []string{"KINO_JOB_ID=" + job.ID},
		Labels:     map[string]string{"kino.job_id": job.ID},
	}

	created, err := r.client.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "kino-render-"+job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	defer func() {
		// The job ctx may already be cancelled.
		if err := r.client.ContainerRemove(context.Background(), created.ID, container.RemoveOptions{Force: true}); err != nil {
			r.log.Warn("failed to remove render container", "container_id", created.ID, "error", err)
		}
	}()

	if err := r.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}
	r.log.Debug("render container started", "job_id", job.ID, "container_id", created.ID)

	statusCh, errCh := r.client.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case err := <-errCh:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed waiting for container: %w", err)
	case status := <-statusCh:
		if status.Error != nil {
			return nil, fmt.Errorf("container wait: %s", status.Error.Message)
		}
		exitCode = status.StatusCode
	}

	if exitCode != 0 {
		return nil, &RenderError{ExitCode: int(exitCode), Stderr: r.stderr(created.ID)}
	}
	return collectOutput(dir, job)
}

func (r *DockerRenderer) stderr(id string) string {
	rc, err := r.client.ContainerLogs(context.Background(), id, container.LogsOptions{ShowStderr: true, Tail: "50"})
	if err != nil {
		return ""
	}
	defer rc.Close()
	var stderr bytes.Buffer
	stdcopy.StdCopy(io.Discard, &stderr, rc)
	return stderr.String()
}

var _ Renderer = (*DockerRenderer)(nil)
