// Package krender turns animation IR into Manim programs and renders them to
// video, either with a local manim binary or inside a Docker container.
package krender

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ScriptFile is the name of the generated program inside a job's work dir.
const ScriptFile = "scene.py"

var ErrOutputMissing = errors.New("render produced no output file")

// Job is one render invocation.
type Job struct {
	ID      string
	Script  string // complete Manim program defining SceneClass
	Quality string // low, medium or high
	Format  string // mp4, gif or webm
}

// Output is a finished render. Close removes the work directory.
type Output struct {
	Path    string
	Format  string
	Size    int64
	workDir string
}

func (o *Output) Close() error {
	if o == nil || o.workDir == "" {
		return nil
	}
	return os.RemoveAll(o.workDir)
}

// Renderer executes Manim programs.
type Renderer interface {
	Render(ctx context.Context, job Job) (*Output, error)
}

// RenderError reports a manim run that exited unsuccessfully.
type RenderError struct {
	ExitCode int
	Stderr   string
}

func (e *RenderError) Error() string {
	msg := fmt.Sprintf("manim exited with code %d", e.ExitCode)
	if tail := lastLines(e.Stderr, 5); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// QualityFlag maps a quality level to manim's preset flag.
func QualityFlag(quality string) string {
	switch quality {
	case "low":
		return "-ql"
	case "high":
		return "-qh"
	}
	return "-qm"
}

func normalizeFormat(format string) string {
	switch f := strings.ToLower(strings.TrimPrefix(format, ".")); f {
	case "gif", "webm":
		return f
	}
	return "mp4"
}

// manimArgs builds the command line with paths as seen by the manim process.
func manimArgs(job Job, scriptPath, mediaDir string) []string {
	return []string{
		"render",
		QualityFlag(job.Quality),
		"--disable_caching",
		"--format", normalizeFormat(job.Format),
		"--media_dir", mediaDir,
		"-o", job.ID,
		scriptPath,
		SceneClass,
	}
}

// prepareWorkDir creates <root>/<job id> and writes the script into it.
func prepareWorkDir(root string, job Job) (string, error) {
	if job.ID == "" || strings.ContainsAny(job.ID, `/\`) || job.ID == "." || job.ID == ".." {
		return "", fmt.Errorf("invalid job id %q", job.ID)
	}
	if root == "" {
		root = os.TempDir()
	}
	dir := filepath.Join(root, job.ID)
	if err := os.MkdirAll(filepath.Join(dir, "media"), 0o755); err != nil {
		return "", fmt.Errorf("failed to create work directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ScriptFile), []byte(job.Script), 0o644); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("failed to write script: %w", err)
	}
	return dir, nil
}

// collectOutput finds <id>.<format> anywhere under the media directory.
func collectOutput(workDir string, job Job) (*Output, error) {
	format := normalizeFormat(job.Format)
	want := job.ID + "." + format
	var found string
	err := filepath.WalkDir(filepath.Join(workDir, "media"), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == want {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if found == "" {
		return nil, ErrOutputMissing
	}
	info, err := os.Stat(found)
	if err != nil {
		return nil, err
	}
	return &Output{Path: found, Format: format, Size: info.Size(), workDir: workDir}, nil
}
