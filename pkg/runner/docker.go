package runner

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const (
	WORKING_DIR = "/app"
	TOOLS_DIR   = "/opt/tick/tools"

	// PATH inherited by commands inside the container, with tool mounts in front.
	containerPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
)

// DockerExecutor runs commands inside a fresh container per command. The job
// workspace is bind mounted read-write at WORKING_DIR and every tool dir read
// only under TOOLS_DIR, so installed tools resolve through PATH exactly as
// they do with the local executor.
type DockerExecutor struct {
	image         string
	showImagePull bool
}

func NewDockerExecutor(image string) *DockerExecutor {
	return &DockerExecutor{image: image}
}

func (d *DockerExecutor) ShowImagePull(show bool) *DockerExecutor {
	d.showImagePull = show
	return d
}

func (d *DockerExecutor) Exec(ctx context.Context, opts ExecOptions) error {
	name := slug.Make("tick" + uuid.NewString())

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("unable to create docker client for %s: %v", name, err)
	}
	defer cli.Close()

	reader, err := cli.ImagePull(ctx, d.image, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("unable to pull image %s for %s: %v", d.image, name, err)
	}
	defer reader.Close()
	pullOut := io.Discard
	if d.showImagePull {
		pullOut = opts.Stdout
	}
	if _, err := io.Copy(pullOut, reader); err != nil {
		return fmt.Errorf("unable to read image pull logs for %s: %v", name, err)
	}

	mounts := []mount.Mount{
		{
			Type:   mount.TypeBind,
			Source: opts.Dir,
			Target: WORKING_DIR,
		},
	}
	toolPath := make([]string, 0, len(opts.ToolDirs))
	for i, dir := range opts.ToolDirs {
		target := path.Join(TOOLS_DIR, fmt.Sprintf("%d", i))
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   dir,
			Target:   target,
			ReadOnly: true,
		})
		toolPath = append(toolPath, target)
	}

	env := append([]string{}, opts.Env...)
	if len(toolPath) > 0 {
		env = append(env, fmt.Sprintf("PATH=%s:%s", strings.Join(toolPath, ":"), containerPath))
	}

	resp, err := cli.ContainerCreate(ctx, &container.Config{
		Image:      d.image,
		Env:        env,
		Cmd:        []string{"/bin/sh", "-c", opts.Command},
		WorkingDir: WORKING_DIR,
	}, &container.HostConfig{
		Mounts: mounts,
	}, nil, nil, name)
	if err != nil {
		return fmt.Errorf("unable to create container %s: %v", name, err)
	}
	defer cli.ContainerRemove(ctx, resp.ID, types.ContainerRemoveOptions{})

	if err := cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("unable to start container %s: %v", name, err)
	}

	logs, err := cli.ContainerLogs(ctx, resp.ID, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return fmt.Errorf("unable to attach logs for %s: %v", name, err)
	}
	defer logs.Close()

	if _, err := io.Copy(opts.Stdout, logs); err != nil {
		return fmt.Errorf("unable to read container logs from %s: %v", name, err)
	}

	statusCh, errCh := cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return fmt.Errorf("error waiting for container %s to stop: %v", name, err)
	case status := <-statusCh:
		if status.StatusCode != 0 {
			return &ToolExitError{Command: opts.Command, Code: int(status.StatusCode)}
		}
	case <-ctx.Done():
		return fmt.Errorf("context timed out, stopping container %s", name)
	}

	return nil
}
