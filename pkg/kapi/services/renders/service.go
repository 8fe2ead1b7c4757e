// Package renders queues render jobs, runs them through a krender.Renderer
// with bounded concurrency and stores the resulting videos.
package renders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quatton/kino/pkg/kart"
	"github.com/quatton/kino/pkg/klog"
	"github.com/quatton/kino/pkg/krender"
	"github.com/quatton/kino/pkg/kv"
)

const (
	DefaultMaxConcurrent = 3
	DefaultRecordTTL     = 7 * 24 * time.Hour

	cancelledMessage = "Cancelled by user"
)

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrInvalidRequest  = errors.New("invalid render request")
	ErrNotCancellable  = errors.New("job already finished")
	ErrVideoNotReady   = errors.New("video not available")
	ErrServiceShutdown = errors.New("render service is shutting down")
	ErrRenderFailed    = errors.New("render failed")
)

var outputFormats = map[string]bool{"mp4": true, "gif": true, "webm": true}
var qualities = map[string]bool{"low": true, "medium": true, "high": true}

// CreditLedger charges a render to a user before it is queued.
type CreditLedger interface {
	ConsumeCredit(ctx context.Context, userID string) error
}

type Service struct {
	records   kv.Store
	videos    kart.Store
	renderer  krender.Renderer
	credits   CreditLedger
	metrics   *Metrics
	log       *klog.Logger
	recordTTL time.Duration
	now       func() time.Time

	slots chan struct{}

	// mu serialises read-modify-write cycles on records.
	mu      sync.Mutex
	running map[string]context.CancelFunc

	base     context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup
}

type Option func(*Service)

func WithMaxConcurrent(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.slots = make(chan struct{}, n)
		}
	}
}

func WithCreditLedger(c CreditLedger) Option {
	return func(s *Service) {
		s.credits = c
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(l *klog.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

func WithRecordTTL(d time.Duration) Option {
	return func(s *Service) {
		s.recordTTL = d
	}
}

func NewService(records kv.Store, videos kart.Store, renderer krender.Renderer, opts ...Option) *Service {
	base, cancel := context.WithCancel(context.Background())
	s := &Service{
		records:   records,
		videos:    videos,
		renderer:  renderer,
		log:       klog.Discard(),
		recordTTL: DefaultRecordTTL,
		now:       time.Now,
		slots:     make(chan struct{}, DefaultMaxConcurrent),
		running:   make(map[string]context.CancelFunc),
		base:      base,
		shutdown:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	return s
}

// plan is a validated render request.
type plan struct {
	format   string
	quality  string
	script   string
	estimate *float64
}

func prepare(in QueueInput) (*plan, error) {
	format := strings.ToLower(in.OutputFormat)
	if format == "" {
		format = "mp4"
	}
	if !outputFormats[format] {
		return nil, fmt.Errorf("%w: unsupported output format %q", ErrInvalidRequest, in.OutputFormat)
	}
	quality := in.Quality
	if quality == "" {
		quality = "medium"
	}
	if !qualities[quality] {
		return nil, fmt.Errorf("%w: unsupported quality %q", ErrInvalidRequest, in.Quality)
	}

	p := &plan{format: format, quality: quality}
	ir, irErr := krender.ParseIR(in.AnimationIR)
	if ir != nil {
		d := ir.EstimatedRenderSeconds()
		p.estimate = &d
	}
	switch {
	case in.CustomCode != nil && strings.TrimSpace(*in.CustomCode) != "":
		p.script = *in.CustomCode
	case irErr != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, irErr)
	default:
		p.script = krender.GenerateScript(ir)
	}
	return p, nil
}

func (s *Service) charge(ctx context.Context, userID string) error {
	if s.credits == nil {
		return nil
	}
	return s.credits.ConsumeCredit(ctx, userID)
}

// Queue validates the request, charges a credit and starts rendering in the
// background. The returned record is pending.
func (s *Service) Queue(ctx context.Context, userID string, in QueueInput) (*Record, error) {
	if s.base.Err() != nil {
		return nil, ErrServiceShutdown
	}
	p, err := prepare(in)
	if err != nil {
		return nil, err
	}
	if err := s.charge(ctx, userID); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate job id: %w", err)
	}
	rec := &Record{
		JobID:             id.String(),
		UserID:            userID,
		Status:            StatusPending,
		EstimatedDuration: p.estimate,
		OutputFormat:      p.format,
		Quality:           p.quality,
		CustomCode:        in.CustomCode != nil,
		Audio:             in.Audio,
		CreatedAt:         s.now().UTC(),
	}
	if err := s.save(ctx, rec); err != nil {
		return nil, err
	}
	s.metrics.event("queued")
	s.log.Info("render queued", "job_id", rec.JobID, "user_id", userID, "format", p.format, "quality", p.quality)

	jobCtx, cancel := context.WithCancel(s.base)
	s.mu.Lock()
	s.running[rec.JobID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.process(jobCtx, rec.UserID, rec.JobID, krender.Job{
		ID:      rec.JobID,
		Script:  p.script,
		Quality: p.quality,
		Format:  p.format,
	})

	return rec, nil
}

// RenderNow renders while the caller waits. It is charged like Queue and
// shares the render slots, but stores neither a record nor the video. The
// caller must Close the output.
func (s *Service) RenderNow(ctx context.Context, userID string, in QueueInput) (*krender.Output, error) {
	if s.base.Err() != nil {
		return nil, ErrServiceShutdown
	}
	p, err := prepare(in)
	if err != nil {
		return nil, err
	}
	if err := s.charge(ctx, userID); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.base, cancel)
	defer stop()

	id := uuid.NewString()
	s.metrics.event("instant")
	s.metrics.waiting.Inc()
	select {
	case s.slots <- struct{}{}:
		s.metrics.waiting.Dec()
	case <-ctx.Done():
		s.metrics.waiting.Dec()
		if s.base.Err() != nil {
			return nil, ErrServiceShutdown
		}
		return nil, ctx.Err()
	}
	defer func() { <-s.slots }()

	started := s.now()
	s.metrics.running.Inc()
	out, err := s.renderer.Render(ctx, krender.Job{ID: id, Script: p.script, Quality: p.quality, Format: p.format})
	s.metrics.running.Dec()
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
	}
	s.metrics.duration.WithLabelValues(string(status)).Observe(s.now().Sub(started).Seconds())
	if err != nil {
		if s.base.Err() != nil {
			return nil, ErrServiceShutdown
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.Warn("instant render failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	s.log.Info("instant render completed", "user_id", userID, "format", p.format, "size", out.Size)
	return out, nil
}

// Limits describes what one render may contain and how many run at once.
type Limits struct {
	MaxConcurrent    int
	MaxSceneDuration float64
	MaxSceneObjects  int
	OutputFormats    []string
	Qualities        []string
}

func (s *Service) Limits() Limits {
	return Limits{
		MaxConcurrent:    cap(s.slots),
		MaxSceneDuration: krender.MaxSceneDuration,
		MaxSceneObjects:  krender.MaxSceneObjects,
		OutputFormats:    []string{"mp4", "gif", "webm"},
		Qualities:        []string{"low", "medium", "high"},
	}
}

// Stats summarises a user's stored jobs.
type Stats struct {
	TotalJobs            int
	ByStatus             map[Status]int
	ByFormat             map[string]int
	RenderSeconds        float64
	AverageRenderSeconds float64
	LastJobAt            *time.Time
}

// Stats aggregates the user's job records. Render time counts completed jobs
// that recorded a start.
func (s *Service) Stats(ctx context.Context, userID string) (*Stats, error) {
	recs, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	st := &Stats{
		TotalJobs: len(recs),
		ByStatus:  map[Status]int{StatusPending: 0, StatusProcessing: 0, StatusCompleted: 0, StatusFailed: 0},
		ByFormat:  map[string]int{},
	}
	timed := 0
	for _, rec := range recs {
		st.ByStatus[rec.Status]++
		st.ByFormat[rec.OutputFormat]++
		if rec.Status == StatusCompleted && rec.StartedAt != nil && rec.CompletedAt != nil {
			st.RenderSeconds += rec.CompletedAt.Sub(*rec.StartedAt).Seconds()
			timed++
		}
	}
	if timed > 0 {
		st.AverageRenderSeconds = st.RenderSeconds / float64(timed)
	}
	if len(recs) > 0 {
		t := recs[0].CreatedAt
		st.LastJobAt = &t
	}
	return st, nil
}

func (s *Service) process(ctx context.Context, userID, jobID string, job krender.Job) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		if cancel, ok := s.running[jobID]; ok {
			cancel()
			delete(s.running, jobID)
		}
		s.mu.Unlock()
	}()

	s.metrics.waiting.Inc()
	select {
	case s.slots <- struct{}{}:
		s.metrics.waiting.Dec()
	case <-ctx.Done():
		s.metrics.waiting.Dec()
		s.interrupted(userID, jobID)
		return
	}
	defer func() { <-s.slots }()

	started := s.now().UTC()
	ok, err := s.update(context.Background(), userID, jobID, func(r *Record) bool {
		if r.Status != StatusPending {
			return false
		}
		r.Status = StatusProcessing
		r.StartedAt = &started
		return true
	})
	if err != nil {
		s.log.Error("failed to mark render processing", "job_id", jobID, "error", err)
		s.finish(userID, jobID, time.Time{}, "", "", fmt.Sprintf("Render failed: %v", err))
		return
	}
	if !ok {
		return
	}

	s.metrics.running.Inc()
	out, err := s.renderer.Render(ctx, job)
	s.metrics.running.Dec()
	if err != nil {
		if ctx.Err() != nil {
			s.interrupted(userID, jobID)
			return
		}
		s.finish(userID, jobID, started, "", "", fmt.Sprintf("Render failed: %v", err))
		return
	}
	defer out.Close()

	key := kart.RenderKey(jobID, out.Format)
	if err := s.upload(ctx, jobID, key, out); err != nil {
		if ctx.Err() != nil {
			s.interrupted(userID, jobID)
			return
		}
		s.finish(userID, jobID, started, "", "", fmt.Sprintf("Failed to store video: %v", err))
		return
	}
	s.finish(userID, jobID, started, key, FilePath(jobID, out.Format), "")
}

func (s *Service) upload(ctx context.Context, jobID, key string, out *krender.Output) error {
	f, err := os.Open(out.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = s.videos.Upload(ctx, key, f, out.Size, kart.ContentTypeFor(out.Format), map[string]string{"job_id": jobID})
	return err
}

// interrupted records a job whose context ended early. After a user cancel
// the record is already terminal and finish leaves it alone.
func (s *Service) interrupted(userID, jobID string) {
	s.finish(userID, jobID, time.Time{}, "", "", "Render service shut down")
}

func (s *Service) finish(userID, jobID string, started time.Time, key, videoURL, failure string) {
	now := s.now().UTC()
	status := StatusCompleted
	if failure != "" {
		status = StatusFailed
	}
	ok, err := s.update(context.Background(), userID, jobID, func(r *Record) bool {
		if r.Status.Terminal() {
			return false
		}
		r.Status = status
		r.CompletedAt = &now
		r.StorageKey = key
		r.VideoURL = videoURL
		r.ErrorMessage = failure
		return true
	})
	if err != nil {
		s.log.Error("failed to record render result", "job_id", jobID, "error", err)
		return
	}
	if !ok {
		if key != "" {
			// Cancelled while uploading.
			if err := s.videos.Delete(context.Background(), key); err != nil {
				s.log.Warn("failed to delete orphaned video", "key", key, "error", err)
			}
		}
		return
	}

	s.metrics.event(string(status))
	if !started.IsZero() {
		s.metrics.duration.WithLabelValues(string(status)).Observe(now.Sub(started).Seconds())
	}
	if failure != "" {
		s.log.Warn("render failed", "job_id", jobID, "error", failure)
	} else {
		s.log.Info("render completed", "job_id", jobID, "video_url", videoURL)
	}
}

// Cancel fails a pending or processing job owned by userID.
func (s *Service) Cancel(ctx context.Context, userID, jobID string) (*Record, error) {
	var out Record
	now := s.now().UTC()
	var finished bool
	_, err := s.update(ctx, userID, jobID, func(r *Record) bool {
		if r.Status.Terminal() {
			finished = true
			out = *r
			return false
		}
		r.Status = StatusFailed
		r.ErrorMessage = cancelledMessage
		r.CompletedAt = &now
		out = *r
		return true
	})
	if err != nil {
		return nil, err
	}
	if finished {
		return &out, ErrNotCancellable
	}

	s.mu.Lock()
	cancel, ok := s.running[jobID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	s.metrics.event("cancelled")
	s.log.Info("render cancelled", "job_id", jobID, "user_id", userID)
	return &out, nil
}

func (s *Service) Get(ctx context.Context, userID, jobID string) (*Record, error) {
	data, err := s.records.Get(ctx, recordKey(userID, jobID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt job record %s: %w", jobID, err)
	}
	return &rec, nil
}

// List returns the user's jobs, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]*Record, error) {
	keys, err := s.records.Scan(ctx, userPrefix(userID))
	if err != nil {
		return nil, err
	}
	recs := make([]*Record, 0, len(keys))
	for _, key := range keys {
		rec, err := s.Get(ctx, userID, strings.TrimPrefix(key, userPrefix(userID)))
		if errors.Is(err, ErrJobNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].JobID > recs[j].JobID
		}
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	return recs, nil
}

// OpenVideo opens the video served as /files/<name> for its owner.
func (s *Service) OpenVideo(ctx context.Context, userID, name string) (io.ReadCloser, *kart.Artifact, error) {
	jobID, _, ok := strings.Cut(name, ".")
	if !ok || jobID == "" {
		return nil, nil, ErrJobNotFound
	}
	rec, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return nil, nil, err
	}
	if rec.Status != StatusCompleted || rec.StorageKey == "" || rec.VideoURL != "/files/"+name {
		return nil, nil, ErrVideoNotReady
	}
	rc, art, err := s.videos.Download(ctx, rec.StorageKey)
	if errors.Is(err, kart.ErrNotFound) {
		return nil, nil, ErrVideoNotReady
	}
	return rc, art, err
}

// Close stops accepting work, cancels running renders and waits for their
// goroutines to record the outcome.
func (s *Service) Close() error {
	s.shutdown()
	s.wg.Wait()
	return nil
}

func (s *Service) save(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.records.Set(ctx, recordKey(rec.UserID, rec.JobID), data, s.recordTTL)
}

// update applies fn to the stored record and saves it when fn returns true.
func (s *Service) update(ctx context.Context, userID, jobID string, fn func(*Record) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return false, err
	}
	if !fn(rec) {
		return false, nil
	}
	return true, s.save(ctx, rec)
}
