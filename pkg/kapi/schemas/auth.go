package schemas

import "time"

type User struct {
	ID                string    `json:"id" doc:"Unique identifier of the user"`
	Email             string    `json:"email" doc:"Email address"`
	Username          string    `json:"username" doc:"Display name"`
	Tier              string    `json:"tier" doc:"Subscription tier" example:"free"`
	CreditsRemaining  int       `json:"credits_remaining" doc:"Renders left on the current plan"`
	CreditsUsed       int       `json:"credits_used" doc:"Renders consumed so far"`
	AnimationsCreated int       `json:"animations_created" doc:"Number of render jobs queued"`
	CreatedAt         time.Time `json:"created_at" doc:"Registration timestamp"`
}

type RegisterRequest struct {
	Body struct {
		Email    string `json:"email" format:"email" doc:"Email address used to log in"`
		Username string `json:"username" minLength:"3" maxLength:"50" doc:"Display name"`
		Password string `json:"password" minLength:"8" maxLength:"72" doc:"Password"`
	}
}

type LoginRequest struct {
	Body struct {
		Email    string `json:"email" doc:"Email address"`
		Password string `json:"password" doc:"Password"`
	}
}

type AuthResponse struct {
	Body struct {
		AccessToken string `json:"access_token" doc:"Bearer token for authenticated calls"`
		TokenType   string `json:"token_type" example:"bearer" doc:"Token type descriptor"`
		User        User   `json:"user"`
	}
}

type MeResponse struct {
	Body User
}

type Limits struct {
	Tier                 string   `json:"tier" example:"free" doc:"Subscription tier"`
	CreditsRemaining     int      `json:"credits_remaining" doc:"Renders left on the current plan"`
	CreditsUsed          int      `json:"credits_used" doc:"Renders consumed so far"`
	MaxConcurrentRenders int      `json:"max_concurrent_renders" doc:"Renders the server executes at once"`
	MaxSceneDuration     float64  `json:"max_scene_duration" doc:"Longest allowed scene in seconds"`
	MaxObjectsPerScene   int      `json:"max_objects_per_scene" doc:"Most objects allowed in one scene"`
	OutputFormats        []string `json:"output_formats" doc:"Accepted output containers"`
	Qualities            []string `json:"qualities" doc:"Accepted render qualities"`
}

type LimitsResponse struct {
	Body Limits
}
