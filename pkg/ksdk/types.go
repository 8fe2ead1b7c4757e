package ksdk

import (
	"encoding/json"
	"time"
)

// Status is the server-reported state of a render job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// rank orders statuses for forward-only updates. Unknown values rank below
// pending so they never overwrite a known status.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusProcessing:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	}
	return -1
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) Valid() bool {
	return s.rank() >= 0
}

type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

func (q Quality) Valid() bool {
	switch q {
	case QualityLow, QualityMedium, QualityHigh:
		return true
	}
	return false
}

const (
	DefaultOutputFormat = "mp4"
	DefaultQuality      = QualityMedium
)

// RenderOptions are sent alongside the IR on /render/queue.
type RenderOptions struct {
	OutputFormat string  `json:"output_format"`
	Quality      Quality `json:"quality"`
	CustomCode   *string `json:"custom_code,omitempty"`

	IncludeVoiceover bool     `json:"include_voiceover,omitempty"`
	VoiceoverText    string   `json:"voiceover_text,omitempty"`
	VoiceoverVoice   string   `json:"voiceover_voice,omitempty"`
	IncludeMusic     bool     `json:"include_music,omitempty"`
	MusicMood        string   `json:"music_mood,omitempty"`
	MusicVolume      *float64 `json:"music_volume,omitempty"`
}

// RenderRequest pairs an opaque animation IR with render options. The IR is
// forwarded byte for byte and never decoded by the SDK.
type RenderRequest struct {
	AnimationIR json.RawMessage
	Options     RenderOptions
}

// NewRenderRequest copies ir so later changes to the caller's slice cannot
// leak into a submitted request. Empty option fields get their defaults.
func NewRenderRequest(ir []byte, opts RenderOptions) RenderRequest {
	cp := make(json.RawMessage, len(ir))
	copy(cp, ir)
	if opts.OutputFormat == "" {
		opts.OutputFormat = DefaultOutputFormat
	}
	if opts.Quality == "" {
		opts.Quality = DefaultQuality
	}
	if opts.CustomCode != nil {
		code := *opts.CustomCode
		opts.CustomCode = &code
	}
	if opts.MusicVolume != nil {
		vol := *opts.MusicVolume
		opts.MusicVolume = &vol
	}
	return RenderRequest{AnimationIR: cp, Options: opts}
}

func (r RenderRequest) clone() RenderRequest {
	return NewRenderRequest(r.AnimationIR, r.Options)
}

// MarshalJSON flattens the options next to animation_ir, which is the body
// shape /render/queue expects.
func (r RenderRequest) MarshalJSON() ([]byte, error) {
	ir := r.AnimationIR
	if len(ir) == 0 {
		ir = json.RawMessage("null")
	}
	return json.Marshal(struct {
		AnimationIR json.RawMessage `json:"animation_ir"`
		RenderOptions
	}{ir, r.Options})
}

// RenderJob is a server-tracked unit of rendering work.
type RenderJob struct {
	JobID             string     `json:"job_id"`
	Status            Status     `json:"status"`
	VideoURL          string     `json:"video_url,omitempty"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	EstimatedDuration *float64   `json:"estimated_duration,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a deep copy safe to hand to callers.
func (j *RenderJob) Clone() *RenderJob {
	if j == nil {
		return nil
	}
	cp := *j
	if j.EstimatedDuration != nil {
		d := *j.EstimatedDuration
		cp.EstimatedDuration = &d
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// Ready reports whether the job has an artifact that can be resolved.
func (j *RenderJob) Ready() bool {
	return j != nil && j.Status == StatusCompleted && j.VideoURL != ""
}

type User struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Username          string    `json:"username"`
	Tier              string    `json:"tier"`
	CreditsRemaining  int       `json:"credits_remaining"`
	CreditsUsed       int       `json:"credits_used"`
	AnimationsCreated int       `json:"animations_created"`
	CreatedAt         time.Time `json:"created_at"`
}

type Limits struct {
	Tier                 string   `json:"tier"`
	CreditsRemaining     int      `json:"credits_remaining"`
	CreditsUsed          int      `json:"credits_used"`
	MaxConcurrentRenders int      `json:"max_concurrent_renders"`
	MaxSceneDuration     float64  `json:"max_scene_duration"`
	MaxObjectsPerScene   int      `json:"max_objects_per_scene"`
	OutputFormats        []string `json:"output_formats"`
	Qualities            []string `json:"qualities"`
}

// UserStats summarises the jobs the server still stores for the caller.
type UserStats struct {
	TotalJobs            int            `json:"total_jobs"`
	JobsByStatus         map[string]int `json:"jobs_by_status"`
	JobsByFormat         map[string]int `json:"jobs_by_format"`
	RenderSeconds        float64        `json:"render_seconds"`
	AverageRenderSeconds float64        `json:"average_render_seconds"`
	CreditsRemaining     int            `json:"credits_remaining"`
	AnimationsCreated    int            `json:"animations_created"`
	LastJobAt            *time.Time     `json:"last_job_at,omitempty"`
}

type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

type RegisterInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type HealthStatus struct {
	Status string `json:"status"`
}

func (h *HealthStatus) Healthy() bool {
	return h != nil && h.Status == "healthy"
}
