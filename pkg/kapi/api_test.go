package kapi_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/quatton/kino/pkg/kapi"
	"github.com/quatton/kino/pkg/kapi/config"
	"github.com/quatton/kino/pkg/kapi/routes"
	"github.com/quatton/kino/pkg/kapi/services"
	"github.com/quatton/kino/pkg/krender"
	"github.com/quatton/kino/pkg/ksdk"
	"github.com/quatton/kino/pkg/ksdk/kerr"
)

const sceneIR = `{"scenes": [{"scene_id": "intro", "duration": 3, "objects": [
  {"type": "shape", "id": "c", "shape": "circle", "radius": 1, "animations": [{"type": "create", "start_time": 0, "duration": 1}]}
]}]}`

// fileRenderer writes a placeholder video instead of running manim.
type fileRenderer struct {
	dir string
}

func (r fileRenderer) Render(ctx context.Context, job krender.Job) (*krender.Output, error) {
	if !strings.Contains(job.Script, "class KinoAnimation(Scene)") {
		return nil, &krender.RenderError{ExitCode: 1, Stderr: "no scene class"}
	}
	path := filepath.Join(r.dir, job.ID+"."+job.Format)
	data := []byte("fake video " + job.ID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, err
	}
	return &krender.Output{Path: path, Format: job.Format, Size: int64(len(data))}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.EnvConfig{
		AuthSecret:    strings.Repeat("k", 32),
		TokenTTL:      time.Hour,
		JobRecordTTL:  time.Hour,
		MaxConcurrent: 2,
		Storage:       "local",
		StorageDir:    t.TempDir(),
	}
	svcs, err := services.NewServices(context.Background(), cfg, services.Deps{
		Renderer: fileRenderer{dir: t.TempDir()},
	})
	if err != nil {
		t.Fatalf("NewServices failed: %v", err)
	}

	api := kapi.NewApi()
	routes.RegisterAPI(api.Api, svcs)
	api.MountMetrics(svcs.Metrics)

	srv := httptest.NewServer(api.Router)
	t.Cleanup(func() {
		srv.Close()
		svcs.Close()
	})
	return srv
}

func newTestSdk(t *testing.T, baseURL string) *ksdk.Sdk {
	t.Helper()
	sdk, err := ksdk.NewSdk(&ksdk.Config{
		BaseURL:         baseURL,
		PollInterval:    10 * time.Millisecond,
		RequestTimeout:  5 * time.Second,
		DownloadTimeout: 5 * time.Second,
		CacheDir:        t.TempDir(),
	}, ksdk.WithSession(ksdk.NewMemoryStore("")))
	if err != nil {
		t.Fatalf("NewSdk failed: %v", err)
	}
	t.Cleanup(func() { sdk.Close() })
	return sdk
}

func TestRenderLifecycleEndToEnd(t *testing.T) {
	srv := newTestServer(t)
	sdk := newTestSdk(t, srv.URL)
	ctx := context.Background()

	if _, err := sdk.Register(ctx, ksdk.RegisterInput{Email: "ada@example.com", Username: "ada", Password: "correct horse"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	updates := make(chan ksdk.RenderJob, 16)
	unsubscribe := sdk.Jobs.Subscribe(func(ev ksdk.Event) {
		if ev.Type == ksdk.EventJobUpdated {
			updates <- *ev.Job
		}
	})
	defer unsubscribe()

	job, err := sdk.Submit(ctx, ksdk.NewRenderRequest([]byte(sceneIR), ksdk.RenderOptions{}))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if job.Status != ksdk.StatusPending {
		t.Errorf("expected pending on submit, got %s", job.Status)
	}
	if job.EstimatedDuration == nil || *job.EstimatedDuration != 6 {
		t.Errorf("expected estimate 6, got %v", job.EstimatedDuration)
	}

	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case u := <-updates:
			done = u.Status == ksdk.StatusCompleted
			if u.Status == ksdk.StatusFailed {
				t.Fatalf("render failed: %s", u.ErrorMessage)
			}
		case <-timeout:
			t.Fatalf("job never completed, state %s", sdk.Jobs.State())
		}
	}

	art, err := sdk.ResolveArtifact(ctx)
	if err != nil || art == nil {
		t.Fatalf("ResolveArtifact failed: %v", err)
	}
	f, err := art.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	data, _ := io.ReadAll(f)
	f.Close()
	if string(data) != "fake video "+job.JobID {
		t.Errorf("unexpected artifact content %q", data)
	}

	me, err := sdk.Me(ctx)
	if err != nil {
		t.Fatalf("Me failed: %v", err)
	}
	if me.CreditsRemaining != 9 || me.AnimationsCreated != 1 {
		t.Errorf("expected one credit consumed, got %+v", me)
	}

	jobs, err := sdk.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].JobID != job.JobID {
		t.Errorf("unexpected jobs %+v", jobs)
	}

	if _, err := sdk.CancelJob(ctx, job.JobID); kerr.StatusOf(err) != http.StatusConflict {
		t.Errorf("cancelling a completed job should conflict, got %v", err)
	}
}

func TestLimitsInstantRenderAndStats(t *testing.T) {
	srv := newTestServer(t)
	sdk := newTestSdk(t, srv.URL)
	ctx := context.Background()

	if _, err := sdk.Register(ctx, ksdk.RegisterInput{Email: "grace@example.com", Username: "grace", Password: "correct horse"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	limits, err := sdk.Limits(ctx)
	if err != nil {
		t.Fatalf("Limits failed: %v", err)
	}
	if limits.Tier != "free" || limits.CreditsRemaining != 10 || limits.MaxConcurrentRenders != 2 {
		t.Errorf("unexpected limits %+v", limits)
	}
	if limits.MaxSceneDuration != krender.MaxSceneDuration || limits.MaxObjectsPerScene != krender.MaxSceneObjects {
		t.Errorf("unexpected scene limits %+v", limits)
	}

	stream, err := sdk.InstantRender(ctx, ksdk.NewRenderRequest([]byte(sceneIR), ksdk.RenderOptions{
		OutputFormat:     "webm",
		IncludeVoiceover: true,
	}))
	if err != nil {
		t.Fatalf("InstantRender failed: %v", err)
	}
	data, _ := io.ReadAll(stream.Body)
	stream.Body.Close()
	if !strings.HasPrefix(string(data), "fake video ") || stream.ContentType != "video/webm" {
		t.Errorf("unexpected instant video %q (%s)", data, stream.ContentType)
	}

	if _, err := sdk.InstantRender(ctx, ksdk.NewRenderRequest([]byte(`{"scenes": []}`), ksdk.RenderOptions{})); kerr.StatusOf(err) != http.StatusUnprocessableEntity {
		t.Errorf("empty IR should be rejected, got %v", err)
	}

	st, err := sdk.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.TotalJobs != 0 || st.AnimationsCreated != 1 || st.CreditsRemaining != 9 {
		t.Errorf("instant render should be charged without a stored job, got %+v", st)
	}
	if _, ok := st.JobsByStatus["completed"]; !ok {
		t.Errorf("every status should be reported, got %v", st.JobsByStatus)
	}
}

func TestRejectsBadRequests(t *testing.T) {
	srv := newTestServer(t)
	sdk := newTestSdk(t, srv.URL)
	ctx := context.Background()

	if _, err := sdk.Client.RenderStatus(ctx, "missing", ""); !kerr.IsAuthentication(err) {
		t.Errorf("expected authentication error without a token, got %v", err)
	}

	if _, err := sdk.Register(ctx, ksdk.RegisterInput{Email: "bob@example.com", Username: "bob", Password: "hunter2hunter2"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := sdk.Client.Register(ctx, ksdk.RegisterInput{Email: "BOB@example.com", Username: "bob2", Password: "hunter2hunter2"}); kerr.StatusOf(err) != http.StatusConflict {
		t.Errorf("duplicate email should conflict, got %v", err)
	}
	if _, err := sdk.Client.Login(ctx, ksdk.LoginInput{Email: "bob@example.com", Password: "wrong-password"}); !kerr.IsAuthentication(err) {
		t.Errorf("wrong password should be an authentication error, got %v", err)
	}

	if _, err := sdk.Status(ctx, "0193f1b2-7c1d-7cc1-9a8e-3f1d2c0b4a55"); !kerr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}

	_, err := sdk.Submit(ctx, ksdk.NewRenderRequest([]byte(`{"scenes": []}`), ksdk.RenderOptions{}))
	if kerr.StatusOf(err) != http.StatusUnprocessableEntity {
		t.Errorf("empty IR should be rejected, got %v", err)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)
	sdk := newTestSdk(t, srv.URL)

	h, err := sdk.Client.Health(context.Background())
	if err != nil || h.Status != "healthy" {
		t.Fatalf("unexpected health %+v, %v", h, err)
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "kino_render_jobs_running") {
		t.Errorf("metrics not exposed: %d", resp.StatusCode)
	}
}

func TestFilesRequireOwner(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/files/anything.mp4")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestOpenAPIDocumentWithoutServices(t *testing.T) {
	api := kapi.NewApi()
	routes.RegisterAPI(api.Api, nil)

	doc := api.Api.OpenAPI()
	for _, path := range []string{"/render/queue", "/render/status/{job_id}", "/render/jobs", "/render/jobs/{job_id}", "/auth/login", "/auth/limits", "/render/instant", "/analytics/stats", "/files/{name}", "/health"} {
		if doc.Paths[path] == nil {
			t.Errorf("missing path %s", path)
		}
	}
	if _, err := doc.Downgrade(); err != nil {
		t.Errorf("Downgrade failed: %v", err)
	}
}
