package krender

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/quatton/kino/pkg/klog"
)

// LocalRenderer runs the manim binary on the host.
type LocalRenderer struct {
	binary  string
	workDir string
	env     []string
	log     *klog.Logger
}

type LocalRendererOption func(*LocalRenderer)

// WithBinary sets the manim executable. Defaults to "manim" on PATH.
func WithBinary(path string) LocalRendererOption {
	return func(r *LocalRenderer) {
		r.binary = path
	}
}

// WithWorkDir sets the directory job work dirs are created under. An empty
// dir keeps the default under os.TempDir.
func WithWorkDir(dir string) LocalRendererOption {
	return func(r *LocalRenderer) {
		if dir != "" {
			r.workDir = dir
		}
	}
}

func WithEnv(env ...string) LocalRendererOption {
	return func(r *LocalRenderer) {
		r.env = append(r.env, env...)
	}
}

func WithRendererLogger(l *klog.Logger) LocalRendererOption {
	return func(r *LocalRenderer) {
		r.log = l
	}
}

func NewLocalRenderer(opts ...LocalRendererOption) *LocalRenderer {
	r := &LocalRenderer{
		binary:  "manim",
		workDir: filepath.Join(os.TempDir(), "kino-renders"),
		log:     klog.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *LocalRenderer) Render(ctx context.Context, job Job) (*Output, error) {
	dir, err := prepareWorkDir(r.workDir, job)
	if err != nil {
		return nil, err
	}

	args := manimArgs(job, ScriptFile, "media")
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), r.env...)
	cmd.Env = append(cmd.Env, fmt.Sprintf("KINO_JOB_ID=%s", job.ID))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.log.Debug("starting manim", "job_id", job.ID, "args", args)
	err = cmd.Run()
	if err != nil {
		defer os.RemoveAll(dir)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &RenderError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return nil, fmt.Errorf("failed to run manim: %w", err)
	}

	out, err := collectOutput(dir, job)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	r.log.Debug("manim finished", "job_id", job.ID, "path", out.Path, "size", out.Size)
	return out, nil
}

var _ Renderer = (*LocalRenderer)(nil)
