package web

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-rover/pkg/hub"
	"github.com/teslashibe/go-rover/pkg/protocol"
	"github.com/teslashibe/go-rover/pkg/watchdog"
)

// maxControlMessage bounds one inbound control frame.
const maxControlMessage = 16 * 1024

// handleControlWS runs one operator control session. Each inbound
// envelope gets exactly one reply on the same connection; this goroutine
// is the only writer.
func (s *Server) handleControlWS(c *websocket.Conn) {
	session := uuid.NewString()
	logger := s.logger.With("session", session)

	count := s.controlSessions.Add(1)
	logger.Info("control session opened", "remote", c.RemoteAddr().String(), "sessions", count)
	defer func() {
		count := s.controlSessions.Add(-1)
		logger.Info("control session closed", "sessions", count)
	}()

	c.SetReadLimit(maxControlMessage)

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("control read error", "error", err)
			}
			return
		}
		s.controlMessages.Add(1)

		reply := s.gateway.HandleBytes(data)
		if reply.Type == protocol.TypeError {
			logger.Debug("control command failed", "reply_for", reply.ID)
		}

		out, err := reply.Bytes()
		if err != nil {
			logger.Error("encode reply", "error", err)
			continue
		}
		c.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.WriteMessage(websocket.TextMessage, out); err != nil {
			logger.Warn("control write error", "error", err)
			return
		}
	}
}

// handleStatusWS subscribes a client to watchdog transitions and
// periodic status snapshots.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	session := uuid.NewString()

	// Send current status first so the UI does not wait a full interval
	if msg, err := protocol.NewStatusMessage(s.statusData()); err == nil {
		if data, err := msg.Bytes(); err == nil {
			c.WriteMessage(websocket.TextMessage, data)
		}
	}

	client, err := hub.NewClient(s.statusHub, c, session)
	if err != nil {
		return
	}
	client.Run()
}

// NotifyTransition broadcasts a watchdog state change to status clients.
// Safe to call from the watchdog goroutine; it never blocks.
func (s *Server) NotifyTransition(from, to watchdog.State, age time.Duration) {
	msg, err := protocol.NewStateMessage(to.String(), from.String(), age, s.watchdog.Config().Deadline)
	if err != nil {
		s.logger.Error("encode state message", "error", err)
		return
	}
	if err := s.statusHub.BroadcastProtocol(msg); err != nil {
		s.logger.Error("broadcast state", "error", err)
	}
}

func (s *Server) statusData() protocol.StatusData {
	ws := s.watchdog.Stats()
	return protocol.StatusData{
		State:      ws.StateName,
		AgeMs:      s.tracker.Age().Milliseconds(),
		DeadlineMs: s.watchdog.Config().Deadline.Milliseconds(),
		Sink:       s.gateway.SinkName(),
		Stops:      ws.Stops,
		Trips:      ws.Trips,
	}
}

// publishStatus pushes a snapshot every StatusInterval while anyone listens.
func (s *Server) publishStatus(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.statusHub.ClientCount() == 0 {
				continue
			}
			msg, err := protocol.NewStatusMessage(s.statusData())
			if err != nil {
				s.logger.Error("encode status message", "error", err)
				continue
			}
			s.statusHub.BroadcastProtocol(msg)
		}
	}
}
