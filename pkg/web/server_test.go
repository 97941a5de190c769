package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-rover/pkg/actuator"
	"github.com/teslashibe/go-rover/pkg/freshness"
	"github.com/teslashibe/go-rover/pkg/gateway"
	"github.com/teslashibe/go-rover/pkg/protocol"
	"github.com/teslashibe/go-rover/pkg/watchdog"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type testRig struct {
	server   *Server
	sink     *actuator.Mock
	clock    *freshness.ManualClock
	tracker  *freshness.Tracker
	watchdog *watchdog.Watchdog
}

func newRig(t *testing.T, cfg Config) *testRig {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	clock := freshness.NewManualClock(epoch)
	tracker := freshness.New(clock)
	sink := actuator.NewMock()

	gwCfg := gateway.DefaultConfig()
	gwCfg.Clock = clock
	gw, err := gateway.New(sink, tracker, gwCfg, logger)
	require.NoError(t, err)

	wd, err := watchdog.New(tracker, sink, watchdog.DefaultConfig(), logger)
	require.NoError(t, err)

	s, err := NewServer(cfg, gw, wd, tracker, logger)
	require.NoError(t, err)

	return &testRig{server: s, sink: sink, clock: clock, tracker: tracker, watchdog: wd}
}

func (r *testRig) post(t *testing.T, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.server.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestNewServer_RequiresCollaborators(t *testing.T) {
	_, err := NewServer(Config{}, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	rig := newRig(t, Config{})

	resp, err := rig.server.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["ok"])
	assert.InDelta(t, float64(epoch.Unix()), body["time"], 1e-3)
}

func TestDrive_GainAndClamp(t *testing.T) {
	rig := newRig(t, Config{})

	status, body := rig.post(t, "/api/drive", `{"l": 0.6, "r": 0.25}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, 1.0, body["l"])
	assert.InDelta(t, 0.45, body["r"], 1e-9)

	last, ok := rig.sink.LastCall()
	require.True(t, ok)
	assert.Equal(t, 1.0, last.Drive.Left)
}

func TestDrive_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"missing r", `{"l": 0.5}`},
		{"string value", `{"l": "fast", "r": 0.5}`},
		{"bool value", `{"l": true, "r": 0.5}`},
		{"malformed json", `{"l": 0.5,`},
		{"array body", `[0.5, 0.5]`},
		{"trailing garbage", `{"l": 0.5, "r": 0.5}garbage`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newRig(t, Config{})
			before := rig.tracker.LastTouch()

			status, body := rig.post(t, "/api/drive", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, false, body["ok"])
			assert.NotEmpty(t, body["error"])
			assert.Empty(t, rig.sink.Calls())
			assert.True(t, rig.tracker.LastTouch().Equal(before))
		})
	}
}

func TestDrive_ActuatorFailure(t *testing.T) {
	rig := newRig(t, Config{})
	rig.sink.DriveFunc = func(actuator.DriveCommand) error { return errors.New("link down") }

	rig.clock.Advance(time.Second)
	status, body := rig.post(t, "/api/drive", `{"l": 0.1, "r": 0.1}`)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, false, body["ok"])
	assert.Contains(t, body["error"], "link down")
	assert.Equal(t, time.Duration(0), rig.tracker.Age(), "tracker still refreshed")
}

func TestArcade(t *testing.T) {
	rig := newRig(t, Config{})

	status, body := rig.post(t, "/api/arcade", `{"turn": 1, "fwd": 1}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, body["l"])
	assert.Equal(t, 0.0, body["r"])
}

func TestHead(t *testing.T) {
	rig := newRig(t, Config{})

	status, body := rig.post(t, "/api/head", `{"tilt": 0.3}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, body["pan"])
	assert.Equal(t, 0.3, body["tilt"])

	calls := rig.sink.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "SetServo", calls[0].Method)
}

func TestHead_PartialRejection(t *testing.T) {
	rig := newRig(t, Config{})

	status, body := rig.post(t, "/api/head", `{"pan": "left", "tilt": 1.4}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, 1.0, body["tilt"], "valid axis is still applied")
	assert.Nil(t, body["pan"])

	errs, ok := body["errors"].(map[string]any)
	require.True(t, ok, "errors = %v", body["errors"])
	assert.Equal(t, "pan must be a number", errs["pan"])
	assert.Equal(t, 1, rig.sink.CallCount("SetServo"))
}

func TestWaist(t *testing.T) {
	rig := newRig(t, Config{})

	status, body := rig.post(t, "/api/waist", `{"pos": -3}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0.0, body["pos"])

	status, body = rig.post(t, "/api/waist", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "pos is required", body["error"])
}

func TestSay(t *testing.T) {
	rig := newRig(t, Config{})

	status, body := rig.post(t, "/api/say", `{"phraseId": 4}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 4.0, body["phraseId"])
	assert.Equal(t, "Hunter is the greatest.", body["text"])

	status, body = rig.post(t, "/api/say", `{"phraseId": 5}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "unknown phraseId", body["error"])

	status, body = rig.post(t, "/api/say", `{"phraseId": 2.0}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "phraseId must be an int", body["error"])

	assert.Equal(t, 1, rig.sink.CallCount("Say"))
}

func TestStop_Idempotent(t *testing.T) {
	rig := newRig(t, Config{})

	for i := 0; i < 2; i++ {
		rig.clock.Advance(time.Second)
		status, body := rig.post(t, "/api/stop", ``)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, map[string]any{"ok": true}, body)
		assert.Equal(t, time.Duration(0), rig.tracker.Age())
	}
	assert.Equal(t, 2, rig.sink.CallCount("Stop"))
}

func TestStop_MalformedBodyStillStops(t *testing.T) {
	rig := newRig(t, Config{})
	rig.clock.Advance(time.Second)

	status, body := rig.post(t, "/api/stop", `{"oops`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, 1, rig.sink.CallCount("Stop"))
	assert.Equal(t, time.Duration(0), rig.tracker.Age())
}

func TestStatusAndMetrics(t *testing.T) {
	rig := newRig(t, Config{Version: "test"})

	rig.post(t, "/api/drive", `{"l": 0, "r": 0}`)
	rig.post(t, "/api/say", `{"phraseId": 9}`)
	rig.clock.Advance(time.Second)
	rig.watchdog.Poll()

	resp, err := rig.server.App().Test(httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.NoError(t, err)
	var st Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))

	assert.Equal(t, "tripped", st.State)
	assert.Equal(t, int64(1000), st.AgeMs)
	assert.Equal(t, int64(600), st.DeadlineMs)
	assert.Equal(t, "mock", st.Sink)
	assert.Equal(t, "test", st.Version)
	assert.Equal(t, uint64(1), st.Commands[gateway.OpDrive].Accepted)
	assert.Equal(t, uint64(1), st.Commands[gateway.OpSay].Rejected)

	resp, err = rig.server.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	text := string(raw)
	assert.Contains(t, text, "rover_watchdog_tripped 1")
	assert.Contains(t, text, "rover_watchdog_stops_total 1")
	assert.Contains(t, text, `rover_commands_total{op="drive",outcome="accepted"} 1`)
	assert.Contains(t, text, `rover_commands_total{op="say",outcome="rejected"} 1`)
}

func TestPhrases(t *testing.T) {
	rig := newRig(t, Config{})

	resp, err := rig.server.App().Test(httptest.NewRequest(http.MethodGet, "/api/phrases", nil))
	require.NoError(t, err)
	var body struct {
		Phrases []phrase `json:"phrases"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Phrases, 4)
	assert.Equal(t, phrase{ID: 1, Text: "Hello, Hunter."}, body.Phrases[0])
}

func TestStaticIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>rover</h1>"), 0o644))
	rig := newRig(t, Config{StaticDir: dir})

	resp, err := rig.server.App().Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "rover")
}

// The shipped operator console keeps its bench-test switches.
func TestStaticUI_BenchControls(t *testing.T) {
	rig := newRig(t, Config{StaticDir: filepath.Join("..", "..", "static")})

	resp, err := rig.server.App().Test(httptest.NewRequest(http.MethodGet, "/app.js", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	script := string(raw)
	for _, want := range []string{`get("mock") === "1"`, "const INVERT_TURN", "const INVERT_FWD", "/api/arcade", "/api/stop"} {
		assert.Contains(t, script, want)
	}
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	rig := newRig(t, Config{})

	resp, err := rig.server.App().Test(httptest.NewRequest(http.MethodGet, "/ws/control", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestControlWebSocket(t *testing.T) {
	rig := newRig(t, Config{Addr: "127.0.0.1:18090"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rig.server.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://127.0.0.1:18090/ws/control", nil)
	require.NoError(t, err)
	defer ws.Close()

	exchange := func(msg *protocol.Message) *protocol.Message {
		data, err := msg.Bytes()
		require.NoError(t, err)
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))
		ws.SetReadDeadline(time.Now().Add(time.Second))
		_, raw, err := ws.ReadMessage()
		require.NoError(t, err)
		reply, err := protocol.ParseMessage(raw)
		require.NoError(t, err)
		return reply
	}

	drive, _ := protocol.NewCommandMessage(protocol.TypeDrive, "d1", map[string]float64{"l": 0.2, "r": 0.2})
	reply := exchange(drive)
	assert.Equal(t, protocol.TypeAck, reply.Type)
	assert.Equal(t, "d1", reply.ID)

	say, _ := protocol.NewCommandMessage(protocol.TypeSay, "s1", map[string]int{"phraseId": 5})
	reply = exchange(say)
	require.Equal(t, protocol.TypeError, reply.Type)
	errData, err := reply.GetErrorData()
	require.NoError(t, err)
	assert.Equal(t, protocol.KindValidation, errData.Kind)

	ping, _ := protocol.NewPingMessage("p1")
	reply = exchange(ping)
	assert.Equal(t, protocol.TypePong, reply.Type)

	assert.Equal(t, 1, rig.sink.CallCount("Drive"))
	assert.Equal(t, int64(1), rig.server.Status().ControlSessions)
}

func TestStatusWebSocket(t *testing.T) {
	rig := newRig(t, Config{Addr: "127.0.0.1:18091", StatusInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rig.server.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://127.0.0.1:18091/ws/status", nil)
	require.NoError(t, err)
	defer ws.Close()

	read := func() *protocol.Message {
		ws.SetReadDeadline(time.Now().Add(time.Second))
		_, raw, err := ws.ReadMessage()
		require.NoError(t, err)
		msg, err := protocol.ParseMessage(raw)
		require.NoError(t, err)
		return msg
	}

	first := read()
	require.Equal(t, protocol.TypeStatus, first.Type)
	st, err := first.GetStatusData()
	require.NoError(t, err)
	assert.Equal(t, "mock", st.Sink)

	// Wait for registration before the transition is broadcast
	require.Eventually(t, func() bool { return rig.server.statusHub.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	rig.clock.Advance(time.Second)
	rig.watchdog.OnTransition(rig.server.NotifyTransition)
	rig.watchdog.Poll()

	msg := read()
	require.Equal(t, protocol.TypeState, msg.Type)
	state, err := msg.GetStateData()
	require.NoError(t, err)
	assert.Equal(t, "tripped", state.State)
	assert.Equal(t, "armed", state.Previous)
	assert.Equal(t, int64(1000), state.AgeMs)
}
