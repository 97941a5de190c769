package web

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-rover/pkg/gateway"
	"github.com/teslashibe/go-rover/pkg/watchdog"
)

// handleMetrics renders counters in the Prometheus text format
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	ws := s.watchdog.Stats()
	tripped := 0
	if ws.State == watchdog.Tripped {
		tripped = 1
	}

	var b strings.Builder
	fmt.Fprintf(&b, `# HELP rover_watchdog_tripped 1 while drive commands are stale
# TYPE rover_watchdog_tripped gauge
rover_watchdog_tripped %d

# HELP rover_command_age_seconds Seconds since the last drive or stop command
# TYPE rover_command_age_seconds gauge
rover_command_age_seconds %g

# HELP rover_watchdog_cycles_total Watchdog poll cycles
# TYPE rover_watchdog_cycles_total counter
rover_watchdog_cycles_total %d

# HELP rover_watchdog_stops_total Stops issued by the watchdog
# TYPE rover_watchdog_stops_total counter
rover_watchdog_stops_total %d

# HELP rover_watchdog_stop_errors_total Watchdog stops that failed
# TYPE rover_watchdog_stop_errors_total counter
rover_watchdog_stop_errors_total %d

# HELP rover_watchdog_trips_total Transitions into the tripped state
# TYPE rover_watchdog_trips_total counter
rover_watchdog_trips_total %d

# HELP rover_watchdog_panics_total Panics recovered inside watchdog cycles
# TYPE rover_watchdog_panics_total counter
rover_watchdog_panics_total %d

# HELP rover_status_clients Connected status WebSocket clients
# TYPE rover_status_clients gauge
rover_status_clients %d

# HELP rover_control_sessions Open control WebSocket sessions
# TYPE rover_control_sessions gauge
rover_control_sessions %d

# HELP rover_control_messages_total Control WebSocket messages received
# TYPE rover_control_messages_total counter
rover_control_messages_total %d
`, tripped, s.tracker.Age().Seconds(), ws.Cycles, ws.Stops, ws.StopErrors, ws.Trips, ws.Panics,
		s.statusHub.ClientCount(), s.controlSessions.Load(), s.controlMessages.Load())

	stats := s.gateway.Stats()
	b.WriteString("\n# HELP rover_commands_total Operator commands by outcome\n# TYPE rover_commands_total counter\n")
	for _, op := range gateway.AllOps() {
		st := stats[op]
		fmt.Fprintf(&b, "rover_commands_total{op=%q,outcome=\"accepted\"} %d\n", op, st.Accepted)
		fmt.Fprintf(&b, "rover_commands_total{op=%q,outcome=\"rejected\"} %d\n", op, st.Rejected)
		fmt.Fprintf(&b, "rover_commands_total{op=%q,outcome=\"actuator_error\"} %d\n", op, st.ActuatorErrors)
	}

	c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
	return c.SendString(b.String())
}
