package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/heimdex/heimdex-editor/internal/channel"
	"github.com/heimdex/heimdex-editor/internal/export"
	"github.com/heimdex/heimdex-editor/internal/timeline"
)

func dialChannel(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + testToken
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads events until one matches, failing after a deadline.
func readUntil(t *testing.T, conn *websocket.Conn, match func(channel.Event) bool) channel.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var e channel.Event
		if err := conn.ReadJSON(&e); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if match(e) {
			return e
		}
	}
}

func isTerminalOrRejected(e channel.Event) bool {
	return e.Terminal() || e.Type == channel.TypeExportRejected
}

func TestChannel_ExportRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	conn := dialChannel(t, env)

	req := channel.Request{
		Type:      channel.TypeStartExport,
		SourceRef: "https://cdn.example.com/v.mp4",
		Duration:  30,
		Timeline: []channel.ClipMessage{
			{Start: 0, End: 10},
			{Start: 10, End: 20, IsHidden: true},
			{Start: 20, End: 30},
		},
	}
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	e := readUntil(t, conn, isTerminalOrRejected)
	if e.Type != channel.TypeExportComplete {
		t.Fatalf("terminal event = %+v, want exportComplete", e)
	}
	if got := string(e.Binary); got != "[0-10][20-30]" {
		t.Errorf("binary = %q, want %q", got, "[0-10][20-30]")
	}
	if e.JobID == "" {
		t.Error("exportComplete without jobId")
	}
}

func TestChannel_UsesSessionTimeline(t *testing.T) {
	env := newTestEnv(t)
	tl, _ := timeline.New(30)
	tl.Split(10)
	tl.ToggleVisibility(1)
	env.cfg.Session.Reset("/a.mp4", tl)
	conn := dialChannel(t, env)

	if err := conn.WriteJSON(channel.Request{Type: channel.TypeStartExport, SourceRef: "/a.mp4"}); err != nil {
		t.Fatal(err)
	}

	e := readUntil(t, conn, isTerminalOrRejected)
	if e.Type != channel.TypeExportComplete || string(e.Binary) != "[0-10]" {
		t.Fatalf("event = %s %q, want exportComplete [0-10]", e.Type, e.Binary)
	}
}

func TestChannel_AllHiddenFails(t *testing.T) {
	env := newTestEnv(t)
	conn := dialChannel(t, env)

	conn.WriteJSON(channel.Request{
		Type:      channel.TypeStartExport,
		SourceRef: "/a.mp4",
		Timeline:  []channel.ClipMessage{{Start: 0, End: 5, IsHidden: true}},
	})

	e := readUntil(t, conn, isTerminalOrRejected)
	if e.Type != channel.TypeExportFailed || e.Error == nil || e.Error.Kind != export.KindNothingToExport {
		t.Fatalf("event = %+v, want exportFailed NothingToExportError", e)
	}
}

func TestChannel_Rejections(t *testing.T) {
	env := newTestEnv(t)
	conn := dialChannel(t, env)

	tests := []struct {
		name     string
		msg      string
		wantKind string
	}{
		{"not json", `{"type":`, kindBadRequest},
		{"unknown type", `{"type":"rewind"}`, kindBadRequest},
		{"missing source", `{"type":"startExport"}`, kindBadRequest},
		{"gap in timeline", `{"type":"startExport","sourceRef":"/a.mp4","timeline":[{"start":0,"end":4},{"start":5,"end":9}]}`, export.KindInvalidTimeline},
		{"no session timeline", `{"type":"startExport","sourceRef":"/a.mp4"}`, export.KindInvalidTimeline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.msg)); err != nil {
				t.Fatal(err)
			}
			e := readUntil(t, conn, isTerminalOrRejected)
			if e.Type != channel.TypeExportRejected || e.Error == nil || e.Error.Kind != tt.wantKind {
				t.Errorf("event = %+v, want exportRejected %s", e, tt.wantKind)
			}
		})
	}
}

func TestChannel_JobInProgressAndCancel(t *testing.T) {
	env := newTestEnv(t)
	env.engine.block = true
	conn := dialChannel(t, env)

	start := channel.Request{
		Type:      channel.TypeStartExport,
		SourceRef: "/a.mp4",
		Timeline:  []channel.ClipMessage{{Start: 0, End: 5}, {Start: 5, End: 9, IsHidden: true}},
	}
	conn.WriteJSON(start)
	readUntil(t, conn, func(e channel.Event) bool {
		return e.Progress != nil && e.Progress.Stage == string(export.StateTrimming)
	})

	conn.WriteJSON(start)
	e := readUntil(t, conn, isTerminalOrRejected)
	if e.Type != channel.TypeExportRejected || e.Error.Kind != export.KindJobInProgress {
		t.Fatalf("second start = %+v, want exportRejected JobInProgressError", e)
	}

	conn.WriteJSON(channel.Request{Type: channel.TypeCancelExport})
	e = readUntil(t, conn, isTerminalOrRejected)
	if e.Type != channel.TypeExportFailed || e.Error.Kind != export.KindCancelled {
		t.Fatalf("after cancel = %+v, want exportFailed CancelledError", e)
	}
}

func TestChannel_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err == nil {
		t.Fatal("Dial() without token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("response = %v, want 401", resp)
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		origin string
		remote string
		want   bool
	}{
		{"", "127.0.0.1:5000", true},
		{"", "10.0.0.2:5000", false},
		{"http://localhost:3000", "10.0.0.2:5000", true},
		{"https://evil.com", "127.0.0.1:5000", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.RemoteAddr = tt.remote
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := checkOrigin(r); got != tt.want {
			t.Errorf("checkOrigin(origin=%q, remote=%q) = %v, want %v", tt.origin, tt.remote, got, tt.want)
		}
	}
}
