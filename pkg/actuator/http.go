package actuator

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-rover/internal/httpc"
	"github.com/teslashibe/go-rover/pkg/normalize"
)

// HTTPSink forwards commands to a motion daemon's HTTP API.
// Each request carries both the normalized value and the native target, so
// the daemon can pick whichever its driver needs.
type HTTPSink struct {
	BaseURL string

	client *http.Client
	ranges normalize.Ranges
}

// NewHTTPSink creates a sink for the daemon at baseURL.
func NewHTTPSink(baseURL string, timeout time.Duration, ranges normalize.Ranges) *HTTPSink {
	return &HTTPSink{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  httpc.NewClient(timeout),
		ranges:  ranges,
	}
}

// Name returns "http".
func (s *HTTPSink) Name() string { return string(KindHTTP) }

// Drive posts to /api/drive.
func (s *HTTPSink) Drive(cmd DriveCommand) error {
	left, right := s.ranges.WheelTargets(cmd.Left, cmd.Right)
	payload := map[string]any{
		"l":            cmd.Left,
		"r":            cmd.Right,
		"left_target":  left,
		"right_target": right,
	}
	return WrapError(s.Name(), "drive", s.post("/api/drive", payload))
}

// SetServo posts to /api/servo.
func (s *HTTPSink) SetServo(cmd ServoCommand) error {
	target, err := s.ranges.ServoTarget(cmd.Axis, cmd.Position)
	if err != nil {
		return WrapError(s.Name(), "servo", err)
	}
	payload := map[string]any{
		"axis":     cmd.Axis,
		"position": cmd.Position,
		"target":   target,
	}
	return WrapError(s.Name(), "servo", s.post("/api/servo", payload))
}

// Say posts to /api/say.
func (s *HTTPSink) Say(cmd SpeechCommand) error {
	return WrapError(s.Name(), "say", s.post("/api/say", cmd))
}

// Stop posts to /api/stop.
func (s *HTTPSink) Stop() error {
	return WrapError(s.Name(), "stop", s.post("/api/stop", nil))
}

// Close releases idle connections.
func (s *HTTPSink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *HTTPSink) post(path string, payload any) error {
	return httpc.PostJSON(context.Background(), s.client, s.BaseURL+path, payload)
}
