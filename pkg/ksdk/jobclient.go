package ksdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quatton/kino/pkg/klog"
	"github.com/quatton/kino/pkg/ksdk/kerr"
	"golang.org/x/sync/singleflight"
)

// State is the lifecycle position of the job client.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

var (
	ErrJobSuperseded = errors.New("render job was superseded")
	ErrClientClosed  = errors.New("job client is closed")
)

type JobClientOption func(*JobClient)

func WithPollInterval(d time.Duration) JobClientOption {
	return func(c *JobClient) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithLogger(l *klog.Logger) JobClientOption {
	return func(c *JobClient) {
		if l != nil {
			c.log = l
		}
	}
}

// WithCacheDir sets the parent directory for the artifact cache. The client
// creates and later removes its own subdirectory there.
func WithCacheDir(dir string) JobClientOption {
	return func(c *JobClient) { c.cache = newArtifactCache(dir) }
}

func WithTokenSkew(d time.Duration) JobClientOption {
	return func(c *JobClient) { c.skew = d }
}

// JobClient drives one render job at a time from submission to a resolved
// artifact. Every new job bumps a generation counter; poll and artifact
// results carrying an older generation are dropped.
type JobClient struct {
	api      RenderAPI
	log      *klog.Logger
	interval time.Duration
	skew     time.Duration

	baseCtx context.Context
	stopAll context.CancelFunc

	mu       sync.Mutex
	gen      uint64
	job      *RenderJob
	state    State
	err      error
	poller   *PollTask
	artifact *Artifact
	closed   bool

	// genView mirrors gen for the dispatcher, which must not take mu.
	genView atomic.Uint64

	// resolveMu serializes artifact swaps so at most one handle is live.
	// Lock order is resolveMu before mu.
	resolveMu sync.Mutex
	resolves  singleflight.Group

	cache  *artifactCache
	events *dispatcher
}

func NewJobClient(api RenderAPI, opts ...JobClientOption) *JobClient {
	ctx, cancel := context.WithCancel(context.Background())
	c := &JobClient{
		api:      api,
		log:      klog.Discard(),
		interval: DefaultPollInterval,
		skew:     DefaultTokenSkew,
		baseCtx:  ctx,
		stopAll:  cancel,
		cache:    newArtifactCache(""),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.events = newDispatcher(c.genView.Load)
	return c
}

// Subscribe registers fn for client events and returns a function that
// removes it. Events arrive on one goroutine in emission order.
func (c *JobClient) Subscribe(fn func(Event)) func() {
	return c.events.subscribe(fn)
}

// Submit queues req and starts polling the new job. Any job tracked before
// is cancelled and its artifact released before the request is sent.
func (c *JobClient) Submit(ctx context.Context, req RenderRequest, cred Credential) (*RenderJob, error) {
	if err := cred.Check(c.skew); err != nil {
		return nil, err
	}
	req = req.clone()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	gen, poller, art := c.supersedeLocked()
	c.mu.Unlock()
	c.teardown(gen, poller, art)

	job, err := c.api.QueueRender(ctx, req, cred)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		if job != nil {
			c.log.Warn("render job abandoned by a newer request", "job_id", job.JobID)
		}
		return nil, ErrJobSuperseded
	}
	if err != nil {
		c.log.Debug("render submission failed", "error", err)
		return nil, err
	}
	if job.Status == "" {
		job.Status = StatusPending
	}
	if !job.Status.Valid() {
		return nil, kerr.Newf(kerr.CodeServer, "unknown job status %q", job.Status)
	}

	c.job = job.Clone()
	c.log.Info("render job submitted", "job_id", job.JobID, "status", job.Status)

	if job.Status.Terminal() {
		c.state = terminalState(job.Status)
	} else {
		c.state = StatePolling
		jobID := job.JobID
		c.poller = startPollTask(c.baseCtx, c.interval, func(ctx context.Context) bool {
			return c.tick(ctx, gen, jobID, cred)
		})
	}
	c.emitLocked(Event{Type: EventJobUpdated, Job: c.job.Clone()})
	return job.Clone(), nil
}

// PollOnce fetches the job's current status without touching client state.
func (c *JobClient) PollOnce(ctx context.Context, jobID string, cred Credential) (*RenderJob, error) {
	if err := cred.Check(c.skew); err != nil {
		return nil, err
	}
	return c.api.RenderStatus(ctx, jobID, cred)
}

func (c *JobClient) tick(ctx context.Context, gen uint64, jobID string, cred Credential) bool {
	job, err := c.api.RenderStatus(ctx, jobID, cred)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || ctx.Err() != nil {
		c.log.Debug("discarding stale poll result", "job_id", jobID)
		return false
	}
	if err != nil {
		c.state = StateFailed
		c.err = err
		c.log.Warn("polling stopped", "job_id", jobID, "error", err)
		c.emitLocked(Event{Type: EventPollError, Job: c.job.Clone(), Err: err})
		return false
	}
	if c.applyLocked(job) {
		c.emitLocked(Event{Type: EventJobUpdated, Job: c.job.Clone()})
	}
	if c.job.Status.Terminal() {
		c.state = terminalState(c.job.Status)
		c.log.Info("render job finished", "job_id", jobID, "status", c.job.Status)
		return false
	}
	return true
}

// applyLocked merges a poll result into the tracked job. Results for another
// job, unknown statuses and status regressions are dropped.
func (c *JobClient) applyLocked(next *RenderJob) bool {
	cur := c.job
	if cur == nil || next == nil {
		return false
	}
	if next.JobID != "" && next.JobID != cur.JobID {
		c.log.Debug("ignoring status for another job", "job_id", cur.JobID, "got", next.JobID)
		return false
	}
	if !next.Status.Valid() || cur.Status.Terminal() || next.Status.rank() < cur.Status.rank() {
		c.log.Debug("ignoring status regression", "job_id", cur.JobID, "from", cur.Status, "to", next.Status)
		return false
	}

	merged := cur.Clone()
	merged.Status = next.Status
	if next.VideoURL != "" {
		merged.VideoURL = next.VideoURL
	}
	if next.ErrorMessage != "" {
		merged.ErrorMessage = next.ErrorMessage
	}
	if next.EstimatedDuration != nil {
		d := *next.EstimatedDuration
		merged.EstimatedDuration = &d
	}
	if next.CompletedAt != nil {
		t := *next.CompletedAt
		merged.CompletedAt = &t
	}
	if merged.CreatedAt.IsZero() {
		merged.CreatedAt = next.CreatedAt
	}
	c.job = merged
	return true
}

// ResolveArtifact downloads the completed job's video into the local cache.
// It returns (nil, nil) while the job is not completed. Concurrent calls for
// the same job share one download, which runs until the client supersedes the
// job or closes; ctx only bounds how long this caller waits for it.
func (c *JobClient) ResolveArtifact(ctx context.Context, cred Credential) (*Artifact, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	job, gen := c.job.Clone(), c.gen
	c.mu.Unlock()

	if !job.Ready() {
		return nil, nil
	}
	if err := cred.Check(c.skew); err != nil {
		return nil, err
	}

	key := strconv.FormatUint(gen, 10) + "/" + job.JobID
	ch := c.resolves.DoChan(key, func() (any, error) {
		return c.resolve(c.baseCtx, gen, job, cred)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Artifact), nil
	case <-ctx.Done():
		return nil, kerr.New(kerr.CodeNetwork, ctx.Err())
	}
}

func (c *JobClient) resolve(ctx context.Context, gen uint64, job *RenderJob, cred Credential) (*Artifact, error) {
	stream, err := c.api.FetchArtifact(ctx, job.VideoURL, cred)
	if err != nil {
		if serr := c.staleErr(gen); serr != nil {
			return nil, serr
		}
		return nil, err
	}
	st, err := c.cache.stage(job.JobID, job.VideoURL, stream)
	stream.Body.Close()
	if err != nil {
		if serr := c.staleErr(gen); serr != nil {
			return nil, serr
		}
		return nil, fmt.Errorf("caching artifact: %w", err)
	}

	c.resolveMu.Lock()
	defer c.resolveMu.Unlock()

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		c.cache.discard(st)
		return nil, ErrJobSuperseded
	}
	old := c.artifact
	c.artifact = nil
	c.mu.Unlock()

	if old != nil {
		c.cache.release(old)
		c.emit(gen, Event{Type: EventArtifactReleased, Artifact: old})
	}

	a, err := c.cache.commit(st)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		c.cache.release(a)
		return nil, ErrJobSuperseded
	}
	c.artifact = a
	c.log.Debug("artifact resolved", "job_id", job.JobID, "path", a.Path(), "size", a.Size)
	c.emitLocked(Event{Type: EventArtifactResolved, Job: c.job.Clone(), Artifact: a})
	return a, nil
}

// staleErr reports why work started for gen no longer applies, or nil.
func (c *JobClient) staleErr(gen uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return ErrClientClosed
	case c.gen != gen:
		return ErrJobSuperseded
	}
	return nil
}

// ReleaseArtifact frees the held artifact. It is a no-op when none is held.
func (c *JobClient) ReleaseArtifact() {
	c.resolveMu.Lock()
	c.mu.Lock()
	art, gen := c.artifact, c.gen
	c.artifact = nil
	c.mu.Unlock()
	c.cache.release(art)
	c.resolveMu.Unlock()

	if art != nil {
		c.emit(gen, Event{Type: EventArtifactReleased, Artifact: art})
	}
}

// Download copies the artifact bytes to filename through a temp file and
// rename. A missing or released artifact is logged and ignored.
func (c *JobClient) Download(a *Artifact, filename string) error {
	if a.Released() {
		c.log.Warn("no artifact to download", "filename", filename)
		return nil
	}
	src, err := a.Open()
	if err != nil {
		if errors.Is(err, ErrArtifactReleased) || errors.Is(err, os.ErrNotExist) {
			c.log.Warn("artifact released before download", "filename", filename)
			return nil
		}
		return err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".*")
	if err != nil {
		return fmt.Errorf("creating download file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", filename, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("saving %s: %w", filename, err)
	}
	c.log.Info("artifact saved", "filename", filename, "size", a.Size)
	return nil
}

// DefaultFilename names a download after the current time.
func DefaultFilename(format string) string {
	ext := strings.TrimPrefix(strings.TrimSpace(format), ".")
	if ext == "" {
		ext = DefaultOutputFormat
	}
	return fmt.Sprintf("animation-%d.%s", time.Now().UnixMilli(), ext)
}

// Reset cancels polling, releases the artifact and returns to Idle.
func (c *JobClient) Reset() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	gen, poller, art := c.supersedeLocked()
	c.mu.Unlock()

	c.teardown(gen, poller, art)
	c.emit(gen, Event{Type: EventReset})
}

// Close resets the client, stops event delivery and removes the artifact
// cache directory. The client cannot be used afterwards.
func (c *JobClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	_, poller, art := c.supersedeLocked()
	c.mu.Unlock()

	c.stopAll()
	poller.Cancel()
	c.resolveMu.Lock()
	c.cache.release(art)
	c.resolveMu.Unlock()
	c.events.stop()
	return c.cache.close()
}

// supersedeLocked starts a new generation and detaches the old job's
// resources. The caller must pass them to teardown after unlocking.
func (c *JobClient) supersedeLocked() (uint64, *PollTask, *Artifact) {
	c.gen++
	c.genView.Store(c.gen)
	poller, art := c.poller, c.artifact
	c.poller = nil
	c.artifact = nil
	c.job = nil
	c.state = StateIdle
	c.err = nil
	return c.gen, poller, art
}

func (c *JobClient) teardown(gen uint64, poller *PollTask, art *Artifact) {
	poller.Cancel()
	if art == nil {
		return
	}
	c.resolveMu.Lock()
	c.cache.release(art)
	c.resolveMu.Unlock()
	c.emit(gen, Event{Type: EventArtifactReleased, Artifact: art})
}

func (c *JobClient) emitLocked(ev Event) {
	c.emit(c.gen, ev)
}

func (c *JobClient) emit(gen uint64, ev Event) {
	ev.generation = gen
	c.events.push(ev)
}

// Job returns a copy of the tracked job, or nil.
func (c *JobClient) Job() *RenderJob {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job.Clone()
}

func (c *JobClient) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err is the error that stopped polling, if any.
func (c *JobClient) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Artifact returns the live artifact handle, or nil.
func (c *JobClient) Artifact() *Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.artifact
}

func terminalState(s Status) State {
	if s == StatusFailed {
		return StateFailed
	}
	return StateCompleted
}
