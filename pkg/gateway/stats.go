package gateway

import "sync/atomic"

// Op names a gateway operation.
type Op string

// Gateway operations.
const (
	OpDrive  Op = "drive"
	OpArcade Op = "arcade"
	OpHead   Op = "head"
	OpWaist  Op = "waist"
	OpSay    Op = "say"
	OpStop   Op = "stop"
)

// AllOps returns every operation in a stable order.
func AllOps() []Op {
	return []Op{OpDrive, OpArcade, OpHead, OpWaist, OpSay, OpStop}
}

// OpStats counts outcomes of one operation.
type OpStats struct {
	Accepted       uint64 `json:"accepted"`
	Rejected       uint64 `json:"rejected"`
	ActuatorErrors uint64 `json:"actuator_errors"`
}

type counters struct {
	accepted atomic.Uint64
	rejected atomic.Uint64
	failed   atomic.Uint64
}

type stats struct {
	drive, arcade, head, waist, say, stop counters
}

func (s *stats) get(op Op) *counters {
	switch op {
	case OpDrive:
		return &s.drive
	case OpArcade:
		return &s.arcade
	case OpHead:
		return &s.head
	case OpWaist:
		return &s.waist
	case OpSay:
		return &s.say
	default:
		return &s.stop
	}
}

func (s *stats) accept(op Op) { s.get(op).accepted.Add(1) }
func (s *stats) reject(op Op) { s.get(op).rejected.Add(1) }
func (s *stats) fail(op Op)   { s.get(op).failed.Add(1) }

// Stats returns a snapshot of per-operation counters.
func (g *Gateway) Stats() map[Op]OpStats {
	out := make(map[Op]OpStats, len(AllOps()))
	for _, op := range AllOps() {
		c := g.stats.get(op)
		out[op] = OpStats{
			Accepted:       c.accepted.Load(),
			Rejected:       c.rejected.Load(),
			ActuatorErrors: c.failed.Load(),
		}
	}
	return out
}
