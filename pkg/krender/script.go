package krender

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SceneClass is the Manim scene every generated script defines.
const SceneClass = "KinoAnimation"

type stylePreset struct {
	Background string
	Text       string
	Math       string
	Primary    string
}

var stylePresets = map[string]stylePreset{
	"default":    {Text: "#ffffff", Math: "#ffffff", Primary: "#ffffff"},
	"cyberpunk":  {Background: "#050510", Text: "#00ff9f", Math: "#ff0055", Primary: "#00dbff"},
	"chalkboard": {Background: "#2b3d2b", Text: "#eeeeee", Math: "#dddddd", Primary: "#ffffff"},
	"light":      {Background: "#ffffff", Text: "#000000", Math: "#000000", Primary: "#000000"},
}

const defaultBackground = "#1a1a2e"

// GenerateScript turns an IR into a single Manim program whose scenes play
// back to back inside SceneClass.
func GenerateScript(ir *AnimationIR) string {
	style, ok := stylePresets[ir.Style]
	if !ok {
		style = stylePresets["default"]
	}

	var b strings.Builder
	b.WriteString("from manim import *\n\n\n")
	fmt.Fprintf(&b, "class %s(Scene):\n", SceneClass)
	b.WriteString("    def construct(self):\n")
	fmt.Fprintf(&b, "        Text.set_default(color=%s)\n", pyStr(style.Text))
	fmt.Fprintf(&b, "        MathTex.set_default(color=%s)\n", pyStr(style.Math))
	fmt.Fprintf(&b, "        VMobject.set_default(color=%s)\n", pyStr(style.Primary))

	for i, s := range ir.Scenes {
		bg := style.Background
		if bg == "" {
			bg = s.BackgroundColor
		}
		if bg == "" {
			bg = defaultBackground
		}
		fmt.Fprintf(&b, "\n        # scene %d: %s\n", i, sanitizeComment(s.SceneID))
		fmt.Fprintf(&b, "        self.camera.background_color = %s\n", pyStr(bg))
		writeScene(&b, i, s)
		if i < len(ir.Scenes)-1 {
			b.WriteString("        self.clear()\n")
		}
	}
	return b.String()
}

type timedAnimation struct {
	start float64
	obj   string
	anim  Animation
}

func writeScene(b *strings.Builder, index int, s Scene) {
	var timeline []timedAnimation
	for j, o := range s.Objects {
		name := fmt.Sprintf("obj_%d_%d", index, j)
		fmt.Fprintf(b, "        %s = %s\n", name, objectCode(o))
		for _, a := range o.Animations {
			timeline = append(timeline, timedAnimation{start: a.StartTime, obj: name, anim: a})
		}
	}
	sort.SliceStable(timeline, func(i, j int) bool { return timeline[i].start < timeline[j].start })

	current := 0.0
	for _, t := range timeline {
		if wait := t.start - current; wait > 0.01 {
			fmt.Fprintf(b, "        self.wait(%s)\n", pyNum(wait))
			current = t.start
		}
		if code := animationCode(t.obj, t.anim); code != "" {
			fmt.Fprintf(b, "        %s\n", code)
			current += t.anim.Duration
		}
	}
	if remaining := s.Duration - current; remaining > 0.01 {
		fmt.Fprintf(b, "        self.wait(%s)\n", pyNum(remaining))
	}
}

func objectCode(o Object) string {
	color := o.Color
	if color == "" {
		color = "#ffffff"
	}
	pos := position(o.Position)
	opacity := pyNum(orDefault(o.FillOpacity, 1))

	var ctor string
	switch o.Type {
	case "text":
		size := o.FontSize
		if size == 0 {
			size = 36
		}
		ctor = fmt.Sprintf("Text(%s, font_size=%d, color=%s)", pyStr(o.Content), size, pyStr(color))
	case "latex":
		content := o.Content
		if content == "" {
			content = "x"
		}
		ctor = fmt.Sprintf("MathTex(%s, color=%s)", pyStr(content), pyStr(color))
	case "shape":
		switch o.Shape {
		case "circle":
			ctor = fmt.Sprintf("Circle(radius=%s, color=%s, fill_opacity=%s)", pyNum(orDefault(o.Radius, 1)), pyStr(color), opacity)
		case "square":
			ctor = fmt.Sprintf("Square(side_length=%s, color=%s, fill_opacity=%s)", pyNum(orDefault(o.SideLength, 2)), pyStr(color), opacity)
		case "rectangle":
			ctor = fmt.Sprintf("Rectangle(width=%s, height=%s, color=%s, fill_opacity=%s)",
				pyNum(orDefault(o.Width, 2)), pyNum(orDefault(o.Height, 1)), pyStr(color), opacity)
		case "triangle":
			ctor = fmt.Sprintf("Triangle(color=%s, fill_opacity=%s)", pyStr(color), opacity)
		}
	}
	if ctor == "" {
		ctor = fmt.Sprintf("Dot(color=%s)", pyStr(color))
	}
	return ctor + ".move_to(" + pos + ")"
}

func animationCode(obj string, a Animation) string {
	rt := pyNum(a.Duration)
	switch a.Type {
	case "write":
		return fmt.Sprintf("self.play(Write(%s), run_time=%s)", obj, rt)
	case "create":
		return fmt.Sprintf("self.play(Create(%s), run_time=%s)", obj, rt)
	case "fade_in":
		return fmt.Sprintf("self.play(FadeIn(%s), run_time=%s)", obj, rt)
	case "fade_out":
		return fmt.Sprintf("self.play(FadeOut(%s), run_time=%s)", obj, rt)
	case "move_to":
		if a.TargetPosition == nil {
			return ""
		}
		return fmt.Sprintf("self.play(%s.animate.move_to(%s), run_time=%s)", obj, position(a.TargetPosition), rt)
	case "scale":
		return fmt.Sprintf("self.play(%s.animate.scale(%s), run_time=%s)", obj, pyNum(orDefault(a.ScaleFactor, 1)), rt)
	case "rotate":
		return fmt.Sprintf("self.play(Rotate(%s, angle=%s*DEGREES), run_time=%s)", obj, pyNum(orDefault(a.Angle, 0)), rt)
	}
	return ""
}

func position(p []float64) string {
	if len(p) != 3 {
		p = []float64{0, 0, 0}
	}
	return fmt.Sprintf("[%s, %s, %s]", pyNum(p[0]), pyNum(p[1]), pyNum(p[2]))
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// pyStr quotes s as a Python string literal. Go's escapes are a subset of
// Python's, so user text never leaves the literal.
func pyStr(s string) string {
	return strconv.Quote(s)
}

func pyNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func sanitizeComment(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, s)
}
