package gateway

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-rover/pkg/protocol"
)

// Result holds the values a command actually applied, keyed like the
// request body so transports can echo it back.
type Result map[string]any

// Dispatch routes a decoded request body to the matching Accept method.
// The Result is returned even on error when some values were applied
// (drive after an actuator failure, the good axis of a head command).
func (g *Gateway) Dispatch(op Op, fields map[string]any) (Result, error) {
	switch op {
	case OpDrive:
		res, err := g.AcceptDrive(fields["l"], fields["r"])
		return driveResult(res, err), err
	case OpArcade:
		res, err := g.AcceptArcade(fields["turn"], fields["fwd"])
		return driveResult(res, err), err
	case OpHead:
		res, err := g.AcceptHead(fields["pan"], fields["tilt"])
		return Result{"pan": res.Pan, "tilt": res.Tilt}, err
	case OpWaist:
		pos, err := g.AcceptWaist(fields["pos"])
		if err != nil {
			return nil, err
		}
		return Result{"pos": pos}, nil
	case OpSay:
		cmd, err := g.AcceptSpeech(fields["phraseId"])
		if err != nil {
			return nil, err
		}
		return Result{"phraseId": cmd.ID, "text": cmd.Text}, nil
	case OpStop:
		return Result{}, g.AcceptStop()
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownOp, op)
	}
}

func driveResult(res DriveResult, err error) Result {
	if err != nil && Classify(err) == KindValidation {
		return nil
	}
	return Result{"l": res.Left, "r": res.Right}
}

// HandleMessage executes one protocol envelope and builds the reply:
// pong for ping, ack or error for commands.
func (g *Gateway) HandleMessage(msg *protocol.Message) *protocol.Message {
	if msg.Type == protocol.TypePing {
		reply, err := protocol.NewPongMessage(msg.ID, msg.Timestamp, g.clock.Now().UnixMilli())
		if err != nil {
			return protocolError(msg, err)
		}
		return reply
	}

	if !protocol.IsCommand(msg.Type) {
		return protocolError(msg, fmt.Errorf("%w %q", ErrUnknownOp, msg.Type))
	}

	fields, err := msg.Fields()
	if err != nil && msg.Type != protocol.TypeStop {
		return protocolError(msg, err)
	}

	result, err := g.Dispatch(Op(msg.Type), fields)
	if err != nil {
		kind := protocol.KindValidation
		if Classify(err) != KindValidation {
			kind = protocol.KindActuator
		}
		reply, encErr := protocol.NewErrorMessage(msg.Type, msg.ID, kind, err, FieldErrors(err))
		if encErr != nil {
			return protocolError(msg, encErr)
		}
		return reply
	}

	reply, err := protocol.NewAckMessage(msg.Type, msg.ID, result)
	if err != nil {
		return protocolError(msg, err)
	}
	return reply
}

// HandleBytes parses a raw envelope and executes it. Unparseable input
// yields a protocol error reply.
func (g *Gateway) HandleBytes(data []byte) *protocol.Message {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		return protocolError(&protocol.Message{}, err)
	}
	return g.HandleMessage(msg)
}

// protocolError never fails: it falls back to a hand-built envelope.
func protocolError(msg *protocol.Message, cause error) *protocol.Message {
	reply, err := protocol.NewErrorMessage(msg.Type, msg.ID, protocol.KindProtocol, cause, nil)
	if err != nil {
		return &protocol.Message{Type: protocol.TypeError, ID: msg.ID, Timestamp: time.Now().UnixMilli()}
	}
	return reply
}
