package krender

import (
	"strings"
	"testing"
)

func TestGenerateScript(t *testing.T) {
	ir, err := ParseIR([]byte(sampleIR))
	if err != nil {
		t.Fatalf("ParseIR failed: %v", err)
	}
	script := GenerateScript(ir)

	wantInOrder := []string{
		"class KinoAnimation(Scene):",
		`self.camera.background_color = "#1a1a2e"`,
		`obj_0_0 = Text("Hello \"world\"", font_size=36, color="#ffffff").move_to([0, 2, 0])`,
		`obj_0_1 = Circle(radius=1.5, color="#ff0000", fill_opacity=1).move_to([0, 0, 0])`,
		"self.play(Write(obj_0_0), run_time=1)",
		"self.play(Create(obj_0_1), run_time=1)",
		"self.wait(0.5)",
		"self.play(Rotate(obj_0_1, angle=90*DEGREES), run_time=1)",
		"self.clear()",
		"# scene 1: outro",
		"self.wait(2.5)",
	}
	rest := script
	for _, want := range wantInOrder {
		i := strings.Index(rest, want)
		if i < 0 {
			t.Fatalf("script missing %q (or out of order):\n%s", want, script)
		}
		rest = rest[i+len(want):]
	}
	if strings.Count(script, "self.clear()") != 1 {
		t.Errorf("expected a single clear between two scenes:\n%s", script)
	}
}

func TestGenerateScriptStyle(t *testing.T) {
	ir := &AnimationIR{
		Style:  "cyberpunk",
		Scenes: []Scene{{SceneID: "a\nb", Duration: 1, BackgroundColor: "#123456"}},
	}
	script := GenerateScript(ir)
	if !strings.Contains(script, `self.camera.background_color = "#050510"`) {
		t.Errorf("style background should win over scene background:\n%s", script)
	}
	if !strings.Contains(script, `Text.set_default(color="#00ff9f")`) {
		t.Errorf("expected style text color:\n%s", script)
	}
	if !strings.Contains(script, "# scene 0: a b\n") {
		t.Errorf("scene id should stay on the comment line:\n%s", script)
	}
}

func TestManimArgs(t *testing.T) {
	args := manimArgs(Job{ID: "j1", Quality: "high", Format: "webm"}, "scene.py", "media")
	got := strings.Join(args, " ")
	want := "render -qh --disable_caching --format webm --media_dir media -o j1 scene.py KinoAnimation"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if f := QualityFlag("bogus"); f != "-qm" {
		t.Errorf("unknown quality should map to -qm, got %s", f)
	}
	if f := normalizeFormat("MOV"); f != "mp4" {
		t.Errorf("unsupported format should fall back to mp4, got %s", f)
	}
}
