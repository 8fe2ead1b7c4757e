package renders

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// AudioOptions are accepted and stored with the job. Nothing synthesises
// audio yet.
type AudioOptions struct {
	IncludeVoiceover bool     `json:"include_voiceover,omitempty"`
	VoiceoverText    string   `json:"voiceover_text,omitempty"`
	VoiceoverVoice   string   `json:"voiceover_voice,omitempty"`
	IncludeMusic     bool     `json:"include_music,omitempty"`
	MusicMood        string   `json:"music_mood,omitempty"`
	MusicVolume      *float64 `json:"music_volume,omitempty"`
}

// Record is the stored state of one render job.
type Record struct {
	JobID             string       `json:"job_id"`
	UserID            string       `json:"user_id"`
	Status            Status       `json:"status"`
	VideoURL          string       `json:"video_url,omitempty"`
	ErrorMessage      string       `json:"error_message,omitempty"`
	EstimatedDuration *float64     `json:"estimated_duration,omitempty"`
	OutputFormat      string       `json:"output_format"`
	Quality           string       `json:"quality"`
	CustomCode        bool         `json:"custom_code,omitempty"`
	Audio             AudioOptions `json:"audio,omitempty"`
	StorageKey        string       `json:"storage_key,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	StartedAt         *time.Time   `json:"started_at,omitempty"`
	CompletedAt       *time.Time   `json:"completed_at,omitempty"`
}

// QueueInput is a validated request to render.
type QueueInput struct {
	AnimationIR  json.RawMessage
	OutputFormat string
	Quality      string
	CustomCode   *string
	Audio        AudioOptions
}

func recordKey(userID, jobID string) string {
	return "jobs:" + userID + ":" + jobID
}

func userPrefix(userID string) string {
	return "jobs:" + userID + ":"
}

// FilePath is the public path a completed video is served from.
func FilePath(jobID, format string) string {
	return "/files/" + jobID + "." + format
}
