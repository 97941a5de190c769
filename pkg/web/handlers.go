package web

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-rover/pkg/gateway"
	"github.com/teslashibe/go-rover/pkg/protocol"
	"github.com/teslashibe/go-rover/pkg/watchdog"
)

// handleHealth acknowledges liveness
func (s *Server) handleHealth(c *fiber.Ctx) error {
	h := s.gateway.Health()
	return c.JSON(fiber.Map{
		"ok":   h.OK,
		"time": unixSeconds(h.Time),
	})
}

// command returns the handler for one POST /api/<op> route.
// 200 on success, 400 on rejection, 502 when the actuator failed.
func (s *Server) command(op gateway.Op) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fields, err := protocol.DecodeFields(c.Body())
		// A stop is honored whatever its body looks like
		if err != nil && op != gateway.OpStop {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"ok":    false,
				"error": err.Error(),
			})
		}

		result, err := s.gateway.Dispatch(op, fields)

		body := fiber.Map{"ok": err == nil}
		for k, v := range result {
			body[k] = v
		}
		if err == nil {
			return c.JSON(body)
		}

		body["error"] = err.Error()
		if op == gateway.OpHead {
			if fe := gateway.FieldErrors(err); fe != nil {
				body["errors"] = fe
			}
		}

		status := fiber.StatusBadGateway
		if gateway.Classify(err) == gateway.KindValidation {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(body)
	}
}

// Status is the GET /api/status body
type Status struct {
	OK              bool                           `json:"ok"`
	State           string                         `json:"state"`
	AgeMs           int64                          `json:"age_ms"`
	DeadlineMs      int64                          `json:"deadline_ms"`
	IntervalMs      int64                          `json:"interval_ms"`
	Sink            string                         `json:"sink"`
	Gain            float64                        `json:"gain"`
	UptimeSec       float64                        `json:"uptime_sec"`
	Version         string                         `json:"version,omitempty"`
	Watchdog        watchdog.Stats                 `json:"watchdog"`
	Commands        map[gateway.Op]gateway.OpStats `json:"commands"`
	StatusClients   int                            `json:"status_clients"`
	ControlSessions int64                          `json:"control_sessions"`
}

// Status returns the current status snapshot.
func (s *Server) Status() Status {
	ws := s.watchdog.Stats()
	cfg := s.watchdog.Config()
	return Status{
		OK:              true,
		State:           ws.StateName,
		AgeMs:           s.tracker.Age().Milliseconds(),
		DeadlineMs:      cfg.Deadline.Milliseconds(),
		IntervalMs:      cfg.Interval.Milliseconds(),
		Sink:            s.gateway.SinkName(),
		Gain:            s.gateway.Gain(),
		UptimeSec:       time.Since(s.started).Seconds(),
		Version:         s.cfg.Version,
		Watchdog:        ws,
		Commands:        s.gateway.Stats(),
		StatusClients:   s.statusHub.ClientCount(),
		ControlSessions: s.controlSessions.Load(),
	}
}

// handleStatus returns the watchdog and command counters
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

// phrase is one entry of GET /api/phrases
type phrase struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// handlePhrases lists the speech table so the UI can render buttons
func (s *Server) handlePhrases(c *fiber.Ctx) error {
	table := s.gateway.Phrases()
	ids := table.IDs()
	out := make([]phrase, 0, len(ids))
	for _, id := range ids {
		out = append(out, phrase{ID: id, Text: table[id]})
	}
	return c.JSON(fiber.Map{"ok": true, "phrases": out})
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
