package export

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/heimdex/heimdex-editor/internal/timeline"
)

// EDLOptions controls CMX3600 rendering of a timeline.
type EDLOptions struct {
	Title     string
	FrameRate float64
	// SourcePath is written to the media comments; its base name becomes the
	// clip name.
	SourcePath string
}

// GenerateEDL renders the visible clips of a timeline as a CMX3600 EDL. Record
// timecodes run back to back, so the EDL conforms to the same cut the export
// pipeline renders.
func GenerateEDL(clips []timeline.Clip, opts EDLOptions) string {
	fps := int(math.Round(opts.FrameRate))
	if fps <= 0 {
		fps = 30
	}
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = "Untitled"
	}

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame(opts.FrameRate) {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	clipName := "source"
	if opts.SourcePath != "" {
		clipName = filepath.Base(opts.SourcePath)
	}

	visible := lo.Filter(clips, func(c timeline.Clip, _ int) bool { return !c.Hidden })
	record := 0.0
	for i, clip := range visible {
		length := clip.Range.Duration()
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "AA/V",
				secondsToTimecode(clip.Range.Start, fps),
				secondsToTimecode(clip.Range.End, fps),
				secondsToTimecode(record, fps),
				secondsToTimecode(record+length, fps),
			),
			fmt.Sprintf("* FROM CLIP NAME:  %s", clipName),
		)
		if opts.SourcePath != "" {
			lines = append(lines, fmt.Sprintf("* SOURCE FILE:  %s", opts.SourcePath))
		}
		if clip.DisplayID != "" {
			lines = append(lines, fmt.Sprintf("* CLIP ID:  %s", clip.DisplayID))
		}
		record += length
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func isDropFrame(frameRate float64) bool {
	return math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01
}

func secondsToTimecode(sec float64, fps int) string {
	totalFrames := int(math.Round(sec * float64(fps)))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	return fmt.Sprintf("%02d:%02d:%02d:%02d", totalSeconds/3600, (totalSeconds/60)%60, totalSeconds%60, frames)
}
