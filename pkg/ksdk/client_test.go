package ksdk

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quatton/kino/pkg/ksdk/kerr"
)

func newTestServer(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL+"/", WithRequestTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, srv
}

func TestQueueRenderSendsBody(t *testing.T) {
	var body map[string]any
	var auth string
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/render/queue" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"job_id":"abc","status":"pending","created_at":"2025-01-01T00:00:00Z","estimated_duration":12}`)
	})

	req := NewRenderRequest([]byte(`{"scenes":[{"id":"s1"}]}`), RenderOptions{Quality: QualityHigh})
	job, err := c.QueueRender(context.Background(), req, "tok")
	if err != nil {
		t.Fatalf("QueueRender: %v", err)
	}
	if job.JobID != "abc" || job.Status != StatusPending || *job.EstimatedDuration != 12 {
		t.Fatalf("unexpected job %+v", job)
	}
	if auth != "Bearer tok" {
		t.Fatalf("expected bearer header, got %q", auth)
	}
	if body["quality"] != "high" || body["output_format"] != "mp4" {
		t.Fatalf("options not flattened into body: %v", body)
	}
	ir, _ := json.Marshal(body["animation_ir"])
	if string(ir) != `{"scenes":[{"id":"s1"}]}` {
		t.Fatalf("IR not passed through: %s", ir)
	}
	if _, ok := body["custom_code"]; ok {
		t.Fatal("custom_code should be omitted when unset")
	}
}

func TestStatusErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		body   string
		check  func(error) bool
		msg    string
	}{
		{401, `{"detail":"Could not validate credentials"}`, kerr.IsAuthentication, "Could not validate credentials"},
		{403, `{"title":"Forbidden","status":403}`, kerr.IsAuthentication, "Forbidden"},
		{404, `{"detail":"Job not found"}`, kerr.IsNotFound, "Job not found"},
		{500, `oops`, kerr.IsServer, "Internal Server Error"},
		{422, `{"detail":[{"msg":"bad"}],"title":"Unprocessable Entity"}`, kerr.IsServer, "Unprocessable Entity"},
	}
	for _, tc := range cases {
		c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			io.WriteString(w, tc.body)
		})
		_, err := c.RenderStatus(context.Background(), "abc", "tok")
		if !tc.check(err) {
			t.Errorf("status %d: unexpected error kind %v", tc.status, err)
			continue
		}
		if !strings.Contains(err.Error(), tc.msg) {
			t.Errorf("status %d: expected message %q in %q", tc.status, tc.msg, err.Error())
		}
		if kerr.StatusOf(err) != tc.status {
			t.Errorf("status %d: StatusOf = %d", tc.status, kerr.StatusOf(err))
		}
	}
}

func TestRenderStatusEscapesJobID(t *testing.T) {
	var path string
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.EscapedPath()
		io.WriteString(w, `{"job_id":"a b","status":"processing"}`)
	})
	if _, err := c.RenderStatus(context.Background(), "a b", "tok"); err != nil {
		t.Fatalf("RenderStatus: %v", err)
	}
	if path != "/render/status/a%20b" {
		t.Fatalf("unexpected path %s", path)
	}
}

func TestTransportFailureIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.RenderStatus(context.Background(), "abc", "tok"); !kerr.IsNetwork(err) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestTimeoutIsNetwork(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	c.requestTimeout = 20 * time.Millisecond

	_, err := c.RenderStatus(context.Background(), "abc", "tok")
	if !kerr.IsNetwork(err) || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected network timeout, got %v", err)
	}
}

func TestFetchArtifactResolvesRelativeRef(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/abc.mp4" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		io.WriteString(w, "frames")
	})

	s, err := c.FetchArtifact(context.Background(), "/files/abc.mp4", "tok")
	if err != nil {
		t.Fatalf("FetchArtifact: %v", err)
	}
	defer s.Body.Close()
	data, _ := io.ReadAll(s.Body)
	if string(data) != "frames" || s.ContentType != "video/mp4" {
		t.Fatalf("unexpected artifact %q %s", data, s.ContentType)
	}

	if _, err := c.FetchArtifact(context.Background(), "/files/abc.mp4", "other"); !kerr.IsAuthentication(err) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if _, err := c.FetchArtifact(context.Background(), "/files/nope.mp4", "tok"); !kerr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestWaitHealthy(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"status":"healthy"}`)
	})

	h, err := c.WaitHealthy(context.Background(), 5*time.Millisecond)
	if err != nil || !h.Healthy() {
		t.Fatalf("WaitHealthy: %v %v", h, err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 health checks, got %d", calls.Load())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Millisecond)
	defer cancel()
	calls.Store(-100)
	if _, err := c.WaitHealthy(ctx, 5*time.Millisecond); err == nil {
		t.Fatal("expected WaitHealthy to give up when the context ends")
	}
}

func TestInstantRenderStreamsVideo(t *testing.T) {
	var body map[string]any
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/render/instant" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "image/gif")
		io.WriteString(w, "GIF89a")
	})

	vol := 0.5
	req := NewRenderRequest([]byte(`{"scenes":[]}`), RenderOptions{OutputFormat: "gif", IncludeMusic: true, MusicVolume: &vol})
	stream, err := c.InstantRender(context.Background(), req, "tok")
	if err != nil {
		t.Fatalf("InstantRender: %v", err)
	}
	data, _ := io.ReadAll(stream.Body)
	stream.Body.Close()
	if string(data) != "GIF89a" || stream.ContentType != "image/gif" {
		t.Fatalf("unexpected stream %q %s", data, stream.ContentType)
	}
	if body["output_format"] != "gif" || body["quality"] != "medium" {
		t.Fatalf("unexpected body %v", body)
	}
	for _, k := range []string{"include_music", "music_volume"} {
		if _, ok := body[k]; ok {
			t.Errorf("audio option %s should not be sent", k)
		}
	}
}

func TestLimitsAndStats(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/limits":
			io.WriteString(w, `{"tier":"free","credits_remaining":3,"credits_used":7,"max_concurrent_renders":3,"max_scene_duration":10,"max_objects_per_scene":5,"output_formats":["mp4"],"qualities":["low"]}`)
		case "/analytics/stats":
			io.WriteString(w, `{"total_jobs":2,"jobs_by_status":{"completed":1,"failed":1},"jobs_by_format":{"mp4":2},"render_seconds":8,"average_render_seconds":8,"credits_remaining":3,"animations_created":7}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	l, err := c.Limits(context.Background(), "tok")
	if err != nil || l.CreditsRemaining != 3 || l.MaxSceneDuration != 10 || l.OutputFormats[0] != "mp4" {
		t.Fatalf("unexpected limits %+v, %v", l, err)
	}
	st, err := c.Stats(context.Background(), "tok")
	if err != nil || st.TotalJobs != 2 || st.JobsByStatus["failed"] != 1 || st.LastJobAt != nil {
		t.Fatalf("unexpected stats %+v, %v", st, err)
	}
}
