package export

import (
	"strings"
	"testing"

	"github.com/heimdex/heimdex-editor/internal/timeline"
)

func clip(start, end float64, hidden bool) timeline.Clip {
	return timeline.Clip{Range: timeline.Range{Start: start, End: end}, Hidden: hidden}
}

func TestGenerateEDL_SingleClip(t *testing.T) {
	edl := GenerateEDL([]timeline.Clip{clip(0, 2, false)}, EDLOptions{
		Title:      "Project One",
		FrameRate:  30,
		SourcePath: "/media/intro.mp4",
	})

	for _, want := range []string{
		"TITLE: Project One",
		"FCM: NON-DROP FRAME",
		"001  AX       AA/V  C        00:00:00:00 00:00:02:00 00:00:00:00 00:00:02:00",
		"* FROM CLIP NAME:  intro.mp4",
		"* SOURCE FILE:  /media/intro.mp4",
	} {
		if !strings.Contains(edl, want) {
			t.Fatalf("EDL missing %q:\n%s", want, edl)
		}
	}
}

func TestGenerateEDL_SkipsHiddenAndPacksRecordTime(t *testing.T) {
	clips := []timeline.Clip{
		clip(0, 10, false),
		clip(10, 20, true),
		clip(20, 25.5, false),
	}
	edl := GenerateEDL(clips, EDLOptions{Title: "Cut", FrameRate: 30})

	if !strings.Contains(edl, "001  AX       AA/V  C        00:00:00:00 00:00:10:00 00:00:00:00 00:00:10:00") {
		t.Fatalf("first event mismatch:\n%s", edl)
	}
	if !strings.Contains(edl, "002  AX       AA/V  C        00:00:20:00 00:00:25:15 00:00:10:00 00:00:15:15") {
		t.Fatalf("second event mismatch or bad record offset:\n%s", edl)
	}
	if strings.Contains(edl, "003") || strings.Contains(edl, "00:00:10:00 00:00:20:00") {
		t.Fatalf("hidden clip rendered:\n%s", edl)
	}
}

func TestGenerateEDL_Defaults(t *testing.T) {
	edl := GenerateEDL([]timeline.Clip{clip(0, 1, false)}, EDLOptions{FrameRate: 29.97})
	if !strings.Contains(edl, "TITLE: Untitled") {
		t.Errorf("missing default title:\n%s", edl)
	}
	if !strings.Contains(edl, "FCM: DROP FRAME") {
		t.Errorf("expected drop frame FCM:\n%s", edl)
	}
	if !strings.Contains(edl, "* FROM CLIP NAME:  source") {
		t.Errorf("expected default clip name:\n%s", edl)
	}
}

func TestSecondsToTimecode(t *testing.T) {
	tests := []struct {
		name string
		sec  float64
		fps  int
		want string
	}{
		{"zero", 0, 30, "00:00:00:00"},
		{"one second", 1, 30, "00:00:01:00"},
		{"half second", 0.5, 30, "00:00:00:15"},
		{"one minute", 60, 30, "00:01:00:00"},
		{"one hour", 3600, 25, "01:00:00:00"},
		{"mixed", 3723.04, 25, "01:02:03:01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := secondsToTimecode(tt.sec, tt.fps); got != tt.want {
				t.Fatalf("secondsToTimecode(%v, %d) = %q, want %q", tt.sec, tt.fps, got, tt.want)
			}
		})
	}
}
