package schemas

import "time"

type UserStats struct {
	TotalJobs            int            `json:"total_jobs" doc:"Stored render jobs"`
	JobsByStatus         map[string]int `json:"jobs_by_status" doc:"Job count per status"`
	JobsByFormat         map[string]int `json:"jobs_by_format" doc:"Job count per output format"`
	RenderSeconds        float64        `json:"render_seconds" doc:"Total render time of completed jobs"`
	AverageRenderSeconds float64        `json:"average_render_seconds" doc:"Mean render time of completed jobs"`
	CreditsRemaining     int            `json:"credits_remaining" doc:"Renders left on the current plan"`
	AnimationsCreated    int            `json:"animations_created" doc:"Render jobs queued over the account's lifetime"`
	LastJobAt            *time.Time     `json:"last_job_at,omitempty" doc:"Submission time of the newest stored job"`
}

type StatsResponse struct {
	Body UserStats
}
