package channel

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/heimdex/heimdex-editor/internal/timeline"
)

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"start export", `{"type":"startExport","sourceRef":"https://x/v.mp4","timeline":[{"start":0,"end":30}]}`, false},
		{"cancel", `{"type":"cancelExport"}`, false},
		{"missing source", `{"type":"startExport"}`, true},
		{"missing type", `{"sourceRef":"a"}`, true},
		{"unknown type", `{"type":"reboot"}`, true},
		{"bad json", `{`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeRequest() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequest_BuildTimeline(t *testing.T) {
	req := Request{
		Type:      TypeStartExport,
		SourceRef: "/v.mp4",
		Timeline: []ClipMessage{
			{Start: 0, End: 10},
			{Start: 10, End: 20, IsHidden: true, DisplayID: "b"},
			{Start: 20, End: 30},
		},
	}
	tl, err := req.BuildTimeline()
	if err != nil {
		t.Fatalf("BuildTimeline() error = %v", err)
	}
	if tl.Duration() != 30 || tl.Len() != 3 {
		t.Fatalf("timeline = duration %v, %d clips", tl.Duration(), tl.Len())
	}
	visible := tl.VisibleClipsInOrder()
	if len(visible) != 2 || visible[0].Range.Start != 0 || visible[1].Range.Start != 20 {
		t.Errorf("visible = %+v", visible)
	}
	if c, _ := tl.Clip(1); c.DisplayID != "b" {
		t.Errorf("display id not preserved: %q", c.DisplayID)
	}
}

func TestRequest_BuildTimelineRejectsGaps(t *testing.T) {
	tests := map[string]Request{
		"empty":    {},
		"gap":      {Timeline: []ClipMessage{{Start: 0, End: 10}, {Start: 12, End: 30}}},
		"short":    {Duration: 40, Timeline: []ClipMessage{{Start: 0, End: 30}}},
		"overlap":  {Timeline: []ClipMessage{{Start: 0, End: 15}, {Start: 10, End: 30}}},
		"negative": {Timeline: []ClipMessage{{Start: -1, End: 30}}},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := req.BuildTimeline()
			var invalid *timeline.InvalidTimelineError
			if !errors.As(err, &invalid) {
				t.Fatalf("error = %v, want InvalidTimelineError", err)
			}
		})
	}
}

func TestClipMessages_RoundTrip(t *testing.T) {
	tl, _ := timeline.New(30)
	tl.Split(10)
	tl.ToggleVisibility(1)

	req := Request{Timeline: ClipMessages(tl.Clips())}
	back, err := req.BuildTimeline()
	if err != nil {
		t.Fatalf("BuildTimeline() error = %v", err)
	}
	for i, c := range tl.Clips() {
		got, _ := back.Clip(i)
		if got != c {
			t.Errorf("clip %d = %+v, want %+v", i, got, c)
		}
	}
}

func TestEvent_JSONShape(t *testing.T) {
	data, _ := json.Marshal(Failed("job-1", "TrimFailedError", "clip 2"))
	var raw map[string]any
	json.Unmarshal(data, &raw)
	if raw["type"] != "exportFailed" || raw["jobId"] != "job-1" {
		t.Errorf("event = %s", data)
	}
	if _, ok := raw["binary"]; ok {
		t.Errorf("failed event carries binary: %s", data)
	}
	errPayload := raw["error"].(map[string]any)
	if errPayload["kind"] != "TrimFailedError" {
		t.Errorf("error kind = %v", errPayload["kind"])
	}
}

func TestQueue_WaitTerminal(t *testing.T) {
	q := NewQueue(8)
	q.Emit(ProgressEvent("j", "trimming", 1, 2))
	q.Emit(ProgressEvent("j", "trimming", 2, 2))
	q.Emit(Complete("j", []byte("out")))

	var progress int
	e, ok := q.WaitTerminal(context.Background(), func(Event) { progress++ })
	if !ok || e.Type != TypeExportComplete || string(e.Binary) != "out" {
		t.Fatalf("WaitTerminal() = %+v, %v", e, ok)
	}
	if progress != 2 {
		t.Errorf("progress callbacks = %d, want 2", progress)
	}
}

func TestQueue_CloseUnblocks(t *testing.T) {
	q := NewQueue(1)
	q.Emit(ProgressEvent("j", "fetching", 0, 1))

	done := make(chan struct{})
	go func() {
		q.Emit(ProgressEvent("j", "fetching", 1, 1))
		close(done)
	}()

	q.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked after Close")
	}

	q.Emit(Complete("j", nil))
	if _, ok := q.WaitTerminal(context.Background(), nil); ok {
		t.Errorf("WaitTerminal() on closed queue reported a terminal event")
	}
}

func TestQueue_WaitTerminalContext(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, ok := q.WaitTerminal(ctx, nil); ok {
		t.Errorf("expected timeout")
	}
}
