package krender

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidIR = errors.New("invalid animation IR")

const (
	MaxSceneDuration = 10.0
	MaxSceneObjects  = 5
)

// AnimationIR is the scene description produced upstream from a prompt.
type AnimationIR struct {
	Version  string         `json:"version,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Style    string         `json:"style,omitempty"`
	Scenes   []Scene        `json:"scenes"`
}

type Scene struct {
	SceneID         string   `json:"scene_id"`
	Duration        float64  `json:"duration"`
	BackgroundColor string   `json:"background_color,omitempty"`
	Objects         []Object `json:"objects"`
}

type Object struct {
	Type        string      `json:"type"` // text, latex or shape
	ID          string      `json:"id"`
	Content     string      `json:"content,omitempty"`
	Shape       string      `json:"shape,omitempty"`
	Radius      *float64    `json:"radius,omitempty"`
	Width       *float64    `json:"width,omitempty"`
	Height      *float64    `json:"height,omitempty"`
	SideLength  *float64    `json:"side_length,omitempty"`
	Position    []float64   `json:"position,omitempty"`
	FontSize    int         `json:"font_size,omitempty"`
	Color       string      `json:"color,omitempty"`
	FillOpacity *float64    `json:"fill_opacity,omitempty"`
	Animations  []Animation `json:"animations,omitempty"`
}

type Animation struct {
	Type           string    `json:"type"`
	StartTime      float64   `json:"start_time"`
	Duration       float64   `json:"duration"`
	TargetPosition []float64 `json:"target_position,omitempty"`
	ScaleFactor    *float64  `json:"scale_factor,omitempty"`
	Angle          *float64  `json:"angle,omitempty"`
}

var (
	objectTypes    = map[string]bool{"text": true, "latex": true, "shape": true}
	shapeTypes     = map[string]bool{"circle": true, "square": true, "rectangle": true, "triangle": true}
	animationTypes = map[string]bool{
		"write": true, "create": true, "fade_in": true, "fade_out": true,
		"move_to": true, "scale": true, "rotate": true,
	}
)

// ParseIR decodes and validates an animation IR.
func ParseIR(data []byte) (*AnimationIR, error) {
	var ir AnimationIR
	if err := json.Unmarshal(data, &ir); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIR, err)
	}
	if err := ir.Validate(); err != nil {
		return nil, err
	}
	return &ir, nil
}

func (ir *AnimationIR) Validate() error {
	if len(ir.Scenes) == 0 {
		return fmt.Errorf("%w: no scenes", ErrInvalidIR)
	}
	for i, s := range ir.Scenes {
		if err := s.validate(); err != nil {
			return fmt.Errorf("%w: scene %d: %v", ErrInvalidIR, i, err)
		}
	}
	return nil
}

func (s Scene) validate() error {
	if s.Duration <= 0 || s.Duration > MaxSceneDuration {
		return fmt.Errorf("duration %g out of range (0, %g]", s.Duration, MaxSceneDuration)
	}
	if len(s.Objects) > MaxSceneObjects {
		return fmt.Errorf("%d objects, at most %d allowed", len(s.Objects), MaxSceneObjects)
	}
	for _, o := range s.Objects {
		if !objectTypes[o.Type] {
			return fmt.Errorf("object %q: unknown type %q", o.ID, o.Type)
		}
		if o.Type == "shape" && !shapeTypes[o.Shape] {
			return fmt.Errorf("object %q: unknown shape %q", o.ID, o.Shape)
		}
		if o.Position != nil {
			if err := checkPosition(o.Position); err != nil {
				return fmt.Errorf("object %q: %v", o.ID, err)
			}
		}
		if o.FillOpacity != nil && (*o.FillOpacity < 0 || *o.FillOpacity > 1) {
			return fmt.Errorf("object %q: fill_opacity must be within [0, 1]", o.ID)
		}
		for _, a := range o.Animations {
			if !animationTypes[a.Type] {
				return fmt.Errorf("object %q: unknown animation %q", o.ID, a.Type)
			}
			if a.StartTime < 0 || a.Duration <= 0 {
				return fmt.Errorf("object %q: animation %s has invalid timing", o.ID, a.Type)
			}
			if a.TargetPosition != nil {
				if err := checkPosition(a.TargetPosition); err != nil {
					return fmt.Errorf("object %q: animation %s: %v", o.ID, a.Type, err)
				}
			}
		}
	}
	return nil
}

func checkPosition(p []float64) error {
	if len(p) != 3 {
		return fmt.Errorf("position must have 3 coordinates")
	}
	if p[0] < -7 || p[0] > 7 || p[1] < -4 || p[1] > 4 {
		return fmt.Errorf("position out of bounds: x in [-7,7], y in [-4,4]")
	}
	return nil
}

// TotalDuration is the sum of all scene durations in seconds.
func (ir *AnimationIR) TotalDuration() float64 {
	var total float64
	for _, s := range ir.Scenes {
		total += s.Duration
	}
	return total
}

// EstimatedRenderSeconds is the advisory render time reported to clients.
func (ir *AnimationIR) EstimatedRenderSeconds() float64 {
	return ir.TotalDuration() * 2
}
