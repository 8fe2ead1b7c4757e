package krender

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// fakeManim writes a script that mimics manim's output layout.
func fakeManim(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "manim")
	script := "#!/bin/sh\n" + body
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

const fakeManimOK = `
while [ $# -gt 0 ]; do
  case "$1" in
    --media_dir) media="$2"; shift ;;
    --format) fmt="$2"; shift ;;
    -o) name="$2"; shift ;;
  esac
  shift
done
mkdir -p "$media/videos/scene/720p30"
printf 'video' > "$media/videos/scene/720p30/$name.$fmt"
`

func TestLocalRenderer_Render(t *testing.T) {
	workDir := t.TempDir()
	r := NewLocalRenderer(WithBinary(fakeManim(t, fakeManimOK)), WithWorkDir(workDir))

	out, err := r.Render(context.Background(), Job{ID: "job1", Script: "print()", Format: "gif"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out.Format != "gif" || out.Size != 5 || !strings.HasSuffix(out.Path, "job1.gif") {
		t.Errorf("unexpected output %+v", out)
	}
	if data, err := os.ReadFile(filepath.Join(workDir, "job1", ScriptFile)); err != nil || string(data) != "print()" {
		t.Errorf("script not written: %q %v", data, err)
	}

	if err := out.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(workDir, "job1")); !os.IsNotExist(err) {
		t.Error("work dir should be removed on Close")
	}
}

func TestLocalRenderer_FailedCommand(t *testing.T) {
	workDir := t.TempDir()
	r := NewLocalRenderer(WithBinary(fakeManim(t, "echo 'NameError: Foo' >&2\nexit 3\n")), WithWorkDir(workDir))

	_, err := r.Render(context.Background(), Job{ID: "job2"})
	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if renderErr.ExitCode != 3 || !strings.Contains(renderErr.Error(), "NameError: Foo") {
		t.Errorf("unexpected error %v", renderErr)
	}
	if _, err := os.Stat(filepath.Join(workDir, "job2")); !os.IsNotExist(err) {
		t.Error("work dir should be removed after a failure")
	}
}

func TestLocalRenderer_MissingOutput(t *testing.T) {
	r := NewLocalRenderer(WithBinary(fakeManim(t, "exit 0\n")), WithWorkDir(t.TempDir()))
	if _, err := r.Render(context.Background(), Job{ID: "job3"}); !errors.Is(err, ErrOutputMissing) {
		t.Errorf("expected ErrOutputMissing, got %v", err)
	}
}

func TestLocalRenderer_Cancelled(t *testing.T) {
	r := NewLocalRenderer(WithBinary(fakeManim(t, "sleep 5\n")), WithWorkDir(t.TempDir()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Render(ctx, Job{ID: "job4"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPrepareWorkDirRejectsBadIDs(t *testing.T) {
	for _, id := range []string{"", "..", "a/b", `a\b`} {
		if _, err := prepareWorkDir(t.TempDir(), Job{ID: id}); err == nil {
			t.Errorf("expected error for id %q", id)
		}
	}
}
