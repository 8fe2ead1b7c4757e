package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/quatton/kino/pkg/ksdk"
	"github.com/spf13/cobra"
)

var (
	renderFormat     string
	renderQuality    string
	renderCodeFile   string
	renderOutput     string
	renderDetach     bool
	renderNoDownload bool
	renderInstant    bool
)

var renderCmd = &cobra.Command{
	Use:   "render <ir.json|->",
	Short: "Render an animation and download the video",
	Long: `Queue an animation IR for rendering, follow the job until it finishes and
save the video. Ctrl-C stops following and forgets the job; the render keeps
running on the service and can be picked up again with 'kinoctl status'.

Examples:
  kinoctl render scene.json
  kinoctl render scene.json --format webm --quality high -o intro.webm
  cat scene.json | kinoctl render - --detach
  kinoctl render scene.json --code custom_scene.py
  kinoctl render scene.json --instant -o preview.gif --format gif --quality low`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringVarP(&renderFormat, "format", "f", "", "Output format: mp4, gif or webm (default from config)")
	renderCmd.Flags().StringVarP(&renderQuality, "quality", "q", "", "Render quality: low, medium or high (default from config)")
	renderCmd.Flags().StringVar(&renderCodeFile, "code", "", "Manim script rendered instead of the one generated from the IR")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Where to save the video (default animation-<time>.<format>)")
	renderCmd.Flags().BoolVarP(&renderDetach, "detach", "d", false, "Print the job id and exit without waiting")
	renderCmd.Flags().BoolVar(&renderNoDownload, "no-download", false, "Wait for completion but do not download the video")
	renderCmd.Flags().BoolVar(&renderInstant, "instant", false, "Render in a single request without creating a job (short scenes only)")
	renderCmd.MarkFlagsMutuallyExclusive("instant", "detach")
	renderCmd.MarkFlagsMutuallyExclusive("instant", "no-download")
}

func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

func runRender(cmd *cobra.Command, args []string) error {
	ir, err := readInput(args[0])
	if err != nil {
		return fmt.Errorf("reading animation IR: %w", err)
	}

	sdk, err := newSdk(cmd)
	if err != nil {
		return err
	}
	defer sdk.Close()

	opts := ksdk.RenderOptions{
		OutputFormat: sdk.Config.OutputFormat,
		Quality:      sdk.Config.Quality,
	}
	if renderFormat != "" {
		opts.OutputFormat = renderFormat
	}
	if renderQuality != "" {
		opts.Quality = ksdk.Quality(renderQuality)
	}
	if !opts.Quality.Valid() {
		return fmt.Errorf("unknown quality %q", opts.Quality)
	}
	if renderCodeFile != "" {
		code, err := os.ReadFile(renderCodeFile)
		if err != nil {
			return fmt.Errorf("reading custom code: %w", err)
		}
		s := string(code)
		opts.CustomCode = &s
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if renderInstant {
		return runInstantRender(ctx, sdk, ksdk.NewRenderRequest(ir, opts))
	}

	events := make(chan ksdk.Event, 16)
	done := make(chan struct{})
	defer close(done)
	unsubscribe := sdk.Jobs.Subscribe(func(ev ksdk.Event) {
		select {
		case events <- ev:
		case <-done:
		}
	})
	defer unsubscribe()

	job, err := sdk.Submit(ctx, ksdk.NewRenderRequest(ir, opts))
	if err != nil {
		return err
	}
	fmt.Printf("Queued job %s", job.JobID)
	if job.EstimatedDuration != nil {
		fmt.Printf(" (estimated %.0fs)", *job.EstimatedDuration)
	}
	fmt.Println()
	if renderDetach {
		return nil
	}

	last := job.Status
	for !last.Terminal() {
		select {
		case <-ctx.Done():
			sdk.Jobs.Reset()
			return errInterrupted
		case ev := <-events:
			switch ev.Type {
			case ksdk.EventPollError:
				return ev.Err
			case ksdk.EventJobUpdated:
				if ev.Job.Status != last {
					last = ev.Job.Status
					fmt.Printf("Status: %s\n", last)
				}
			}
		}
	}

	final := sdk.Jobs.Job()
	if final.Status == ksdk.StatusFailed {
		return fmt.Errorf("render failed: %s", final.ErrorMessage)
	}
	if renderNoDownload {
		fmt.Printf("Video: %s\n", final.VideoURL)
		return nil
	}

	art, err := sdk.ResolveArtifact(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return errInterrupted
		}
		return err
	}
	filename := renderOutput
	if filename == "" {
		filename = ksdk.DefaultFilename(opts.OutputFormat)
	}
	if err := sdk.Jobs.Download(art, filename); err != nil {
		return err
	}
	fmt.Printf("Saved %s (%d bytes)\n", filename, art.Size)
	return nil
}

func runInstantRender(ctx context.Context, sdk *ksdk.Sdk, req ksdk.RenderRequest) error {
	fmt.Println("Rendering...")
	stream, err := sdk.InstantRender(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return errInterrupted
		}
		return err
	}
	defer stream.Body.Close()

	filename := renderOutput
	if filename == "" {
		filename = ksdk.DefaultFilename(req.Options.OutputFormat)
	}
	n, err := saveStream(stream.Body, filename)
	if err != nil {
		if ctx.Err() != nil {
			return errInterrupted
		}
		return err
	}
	fmt.Printf("Saved %s (%d bytes)\n", filename, n)
	return nil
}

// saveStream writes r to filename through a temp file in the same directory.
func saveStream(r io.Reader, filename string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".*")
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", filename, err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("writing %s: %w", filename, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return 0, fmt.Errorf("saving %s: %w", filename, err)
	}
	return n, nil
}
