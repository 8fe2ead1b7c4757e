package ksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"
	"github.com/quatton/kino/pkg/klog"
	"github.com/quatton/kino/pkg/ksdk/kerr"
	"golang.org/x/oauth2"
)

// RenderAPI is the slice of the render service the job client drives.
type RenderAPI interface {
	QueueRender(ctx context.Context, req RenderRequest, cred Credential) (*RenderJob, error)
	RenderStatus(ctx context.Context, jobID string, cred Credential) (*RenderJob, error)
	FetchArtifact(ctx context.Context, ref string, cred Credential) (*ArtifactStream, error)
}

// ArtifactStream is an open artifact download. Body must be closed.
type ArtifactStream struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Client is the HTTP transport for the render service. Every call maps
// failures onto kerr codes.
type Client struct {
	baseURL         *url.URL
	httpClient      *http.Client
	requestTimeout  time.Duration
	downloadTimeout time.Duration
	log             *klog.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.requestTimeout = d }
}

func WithDownloadTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.downloadTimeout = d }
}

func WithClientLogger(l *klog.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	c := &Client{
		baseURL:         u,
		httpClient:      &http.Client{},
		requestTimeout:  DefaultRequestTimeout,
		downloadTimeout: DefaultDownloadTimeout,
		log:             klog.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// QueueRender posts the request to /render/queue.
func (c *Client) QueueRender(ctx context.Context, req RenderRequest, cred Credential) (*RenderJob, error) {
	var job RenderJob
	if err := c.doJSON(ctx, http.MethodPost, "/render/queue", req, &job, cred); err != nil {
		return nil, err
	}
	if job.JobID == "" {
		return nil, kerr.Newf(kerr.CodeServer, "queue response is missing job_id")
	}
	if job.Status == "" {
		job.Status = StatusPending
	}
	return &job, nil
}

// RenderStatus fetches the current representation of a job.
func (c *Client) RenderStatus(ctx context.Context, jobID string, cred Credential) (*RenderJob, error) {
	p, err := jobPath("/render/status/", jobID)
	if err != nil {
		return nil, err
	}
	var job RenderJob
	if err := c.doJSON(ctx, http.MethodGet, p, nil, &job, cred); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns the caller's jobs, newest first.
func (c *Client) ListJobs(ctx context.Context, cred Credential) ([]RenderJob, error) {
	var jobs []RenderJob
	if err := c.doJSON(ctx, http.MethodGet, "/render/jobs", nil, &jobs, cred); err != nil {
		return nil, err
	}
	return jobs, nil
}

// CancelJob asks the service to stop a pending or processing job.
func (c *Client) CancelJob(ctx context.Context, jobID string, cred Credential) (*RenderJob, error) {
	p, err := jobPath("/render/jobs/", jobID)
	if err != nil {
		return nil, err
	}
	var job RenderJob
	if err := c.doJSON(ctx, http.MethodDelete, p, nil, &job, cred); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) Register(ctx context.Context, in RegisterInput) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", in, &out, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, in LoginInput) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", in, &out, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Me(ctx context.Context, cred Credential) (*User, error) {
	var out User
	if err := c.doJSON(ctx, http.MethodGet, "/auth/me", nil, &out, cred); err != nil {
		return nil, err
	}
	return &out, nil
}

// Limits returns the caller's credits and the limits every render must fit.
func (c *Client) Limits(ctx context.Context, cred Credential) (*Limits, error) {
	var out Limits
	if err := c.doJSON(ctx, http.MethodGet, "/auth/limits", nil, &out, cred); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Stats(ctx context.Context, cred Credential) (*UserStats, error) {
	var out UserStats
	if err := c.doJSON(ctx, http.MethodGet, "/analytics/stats", nil, &out, cred); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &out, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitHealthy polls /health until the service reports healthy or ctx ends.
// The first check runs immediately.
func (c *Client) WaitHealthy(ctx context.Context, interval time.Duration) (*HealthStatus, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		h, err := c.Health(ctx)
		if err == nil && h.Healthy() {
			return h, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = kerr.Newf(kerr.CodeServer, "service reported %q", h.Status)
		}
		c.log.Debug("render service not healthy yet", "error", lastErr)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for render service: %w", errors.Join(ctx.Err(), lastErr))
		case <-ticker.C:
		}
	}
}

// FetchArtifact opens the video behind ref. Relative refs resolve against the
// base URL. The download deadline covers reading the body and is released
// when the body is closed.
func (c *Client) FetchArtifact(ctx context.Context, ref string, cred Credential) (*ArtifactStream, error) {
	target, err := c.resolve(ref)
	if err != nil {
		return nil, err
	}
	return c.doStream(ctx, http.MethodGet, target, nil, cred)
}

// InstantRender renders req while the request waits and returns the video.
// Nothing is stored server-side, so there is no job to poll. Audio options
// are not sent. The download deadline covers the render.
func (c *Client) InstantRender(ctx context.Context, req RenderRequest, cred Credential) (*ArtifactStream, error) {
	ir := req.AnimationIR
	if len(ir) == 0 {
		ir = json.RawMessage("null")
	}
	data, err := json.Marshal(struct {
		AnimationIR  json.RawMessage `json:"animation_ir"`
		OutputFormat string          `json:"output_format,omitempty"`
		Quality      Quality         `json:"quality,omitempty"`
		CustomCode   *string         `json:"custom_code,omitempty"`
	}{ir, req.Options.OutputFormat, req.Options.Quality, req.Options.CustomCode})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	target, err := c.resolve("/render/instant")
	if err != nil {
		return nil, err
	}
	c.log.Debug("render api request", "method", http.MethodPost, "path", "/render/instant")
	return c.doStream(ctx, http.MethodPost, target, data, cred)
}

func (c *Client) doStream(ctx context.Context, method, target string, body []byte, cred Credential) (*ArtifactStream, error) {
	ctx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("building artifact request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req, cred)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, transportError(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel()
		defer resp.Body.Close()
		return nil, statusError(resp)
	}

	return &ArtifactStream{
		Body:        &cancelReadCloser{ReadCloser: resp.Body, ctx: ctx, cancel: cancel},
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any, cred Credential) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	target, err := c.resolve(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req, cred)

	c.log.Debug("render api request", "method", method, "path", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return transportError(ctx, err)
		}
		return kerr.New(kerr.CodeServer, fmt.Errorf("decoding %s %s response: %w", method, path, err))
	}
	return nil
}

func (c *Client) authorize(req *http.Request, cred Credential) {
	if cred == "" {
		return
	}
	tok := &oauth2.Token{AccessToken: string(cred), TokenType: "Bearer"}
	tok.SetAuthHeader(req)
}

func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", kerr.New(kerr.CodeServer, fmt.Errorf("invalid reference %q: %w", ref, err))
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	return strings.TrimRight(c.baseURL.String(), "/") + "/" + strings.TrimLeft(ref, "/"), nil
}

func jobPath(prefix, jobID string) (string, error) {
	if jobID == "" {
		return "", kerr.Newf(kerr.CodeNotFound, "job id is empty")
	}
	p, err := runtime.StyleParamWithLocation("simple", false, "job_id", runtime.ParamLocationPath, jobID)
	if err != nil {
		return "", fmt.Errorf("encoding job id: %w", err)
	}
	return prefix + p, nil
}

func transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return kerr.Wrap(kerr.CodeNetwork, "request timed out", ctx.Err())
	}
	return kerr.New(kerr.CodeNetwork, err)
}

// statusError turns a non-2xx response into a coded error. The message comes
// from the `detail` field of a JSON body when there is one.
func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return kerr.FromStatus(resp.StatusCode, detailMessage(data))
}

func detailMessage(data []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
		Title  string          `json:"title"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	var s string
	if len(body.Detail) > 0 && json.Unmarshal(body.Detail, &s) == nil && s != "" {
		return s
	}
	return body.Title
}

type cancelReadCloser struct {
	io.ReadCloser
	ctx    context.Context
	cancel context.CancelFunc
}

func (r *cancelReadCloser) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if err != nil && err != io.EOF {
		return n, transportError(r.ctx, err)
	}
	return n, err
}

func (r *cancelReadCloser) Close() error {
	defer r.cancel()
	return r.ReadCloser.Close()
}
