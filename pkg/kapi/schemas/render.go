package schemas

import "time"

type RenderJob struct {
	JobID             string     `json:"job_id" doc:"Job identifier"`
	Status            string     `json:"status" enum:"pending,processing,completed,failed" doc:"Job status"`
	VideoURL          string     `json:"video_url,omitempty" doc:"Location of the rendered video once completed"`
	ErrorMessage      string     `json:"error_message,omitempty" doc:"Failure reason"`
	EstimatedDuration *float64   `json:"estimated_duration,omitempty" doc:"Advisory render time in seconds"`
	OutputFormat      string     `json:"output_format,omitempty" doc:"Video container"`
	Quality           string     `json:"quality,omitempty" doc:"Render quality"`
	CreatedAt         time.Time  `json:"created_at" doc:"Submission timestamp"`
	CompletedAt       *time.Time `json:"completed_at,omitempty" doc:"Completion timestamp"`
}

type QueueRenderRequest struct {
	Body struct {
		AnimationIR      any      `json:"animation_ir" doc:"Scene description to render"`
		OutputFormat     string   `json:"output_format,omitempty" enum:"mp4,gif,webm" default:"mp4" doc:"Video container"`
		Quality          string   `json:"quality,omitempty" enum:"low,medium,high" default:"medium" doc:"Render quality"`
		CustomCode       *string  `json:"custom_code,omitempty" doc:"Manim program rendered instead of the generated one"`
		IncludeVoiceover bool     `json:"include_voiceover,omitempty" doc:"Request narration"`
		VoiceoverText    string   `json:"voiceover_text,omitempty" doc:"Narration script"`
		VoiceoverVoice   string   `json:"voiceover_voice,omitempty" doc:"Narration voice"`
		IncludeMusic     bool     `json:"include_music,omitempty" doc:"Request background music"`
		MusicMood        string   `json:"music_mood,omitempty" doc:"Background music mood"`
		MusicVolume      *float64 `json:"music_volume,omitempty" minimum:"0" maximum:"1" doc:"Background music volume"`
	}
}

type RenderJobResponse struct {
	Body RenderJob
}

type JobIDPath struct {
	JobID string `path:"job_id" doc:"Job identifier"`
}

type ListJobsResponse struct {
	Body []RenderJob
}

type HealthResponse struct {
	Body struct {
		Status string `json:"status" example:"healthy" doc:"Health status"`
	}
}

type InstantRenderRequest struct {
	Body struct {
		AnimationIR  any     `json:"animation_ir" doc:"Scene description to render"`
		OutputFormat string  `json:"output_format,omitempty" enum:"mp4,gif,webm" default:"mp4" doc:"Video container"`
		Quality      string  `json:"quality,omitempty" enum:"low,medium,high" default:"medium" doc:"Render quality"`
		CustomCode   *string `json:"custom_code,omitempty" doc:"Manim program rendered instead of the generated one"`
	}
}
