package docker

import (
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
)

// Config describes the container backend of local mode.
type Config struct {
	Image string
	// Command runs inline source; the lesson source is appended as the last argument.
	Command []string
	// ContentRoot is bind-mounted read-only at WorkDir so lessons can read their resources.
	ContentRoot string
	WorkDir     string
	MemoryLimit int64 // bytes
	CPULimit    float64
	PoolSize    int
	PullTimeout time.Duration
	// TmpfsSize bounds the only writable path in the container, /tmp.
	TmpfsSize string
}

// DefaultConfig runs Python lessons in python:3.12-alpine.
func DefaultConfig() Config {
	return Config{
		Image:       "python:3.12-alpine",
		Command:     []string{"python", "-u", "-c"},
		WorkDir:     "/workspace",
		MemoryLimit: 128 * 1024 * 1024,
		CPULimit:    0.5,
		PoolSize:    2,
		PullTimeout: 2 * time.Minute,
		TmpfsSize:   "16m",
	}
}

// withDefaults fills zero fields from DefaultConfig and rejects unusable values.
func (c Config) withDefaults() (Config, error) {
	def := DefaultConfig()
	if c.Image == "" {
		c.Image = def.Image
	}
	if len(c.Command) == 0 {
		c.Command = def.Command
	}
	if c.WorkDir == "" {
		c.WorkDir = def.WorkDir
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 1
	}
	if c.PullTimeout <= 0 {
		c.PullTimeout = def.PullTimeout
	}
	if c.TmpfsSize == "" {
		c.TmpfsSize = def.TmpfsSize
	}
	if c.MemoryLimit < 0 {
		return c, fmt.Errorf("docker: memory limit must not be negative, got %d", c.MemoryLimit)
	}
	if c.CPULimit < 0 {
		return c, fmt.Errorf("docker: cpu limit must not be negative, got %v", c.CPULimit)
	}
	return c, nil
}

// poolLabel marks containers owned by a lesson runner pool.
const poolLabel = "lesson-runner.pool"

// containerSpec is the idle container a lesson is exec'd into: no network,
// read-only root filesystem, unprivileged user, content root mounted read-only.
func (c Config) containerSpec() (*container.Config, *container.HostConfig) {
	cfg := &container.Config{
		Image:      c.Image,
		Cmd:        []string{"sleep", "infinity"},
		WorkingDir: c.WorkDir,
		User:       "nobody",
		Labels:     map[string]string{poolLabel: "true"},
	}
	host := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:   c.MemoryLimit,
			NanoCPUs: int64(c.CPULimit * 1e9),
		},
		ReadonlyRootfs: true,
		Tmpfs:          map[string]string{"/tmp": "rw,size=" + c.TmpfsSize},
	}
	if c.ContentRoot != "" {
		host.Binds = []string{c.ContentRoot + ":" + c.WorkDir + ":ro"}
	}
	return cfg, host
}

// execSpec runs source inside an idle container with stdin attached.
func (c Config) execSpec(source string) container.ExecOptions {
	cmd := make([]string, 0, len(c.Command)+1)
	cmd = append(cmd, c.Command...)
	return container.ExecOptions{
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		WorkingDir:   c.WorkDir,
		Cmd:          append(cmd, source),
	}
}
