package gateway

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-rover/pkg/actuator"
	"github.com/teslashibe/go-rover/pkg/protocol"
)

func TestDispatch(t *testing.T) {
	tests := []struct {
		name   string
		op     Op
		fields map[string]any
		want   Result
		kind   Kind
	}{
		{
			name:   "drive",
			op:     OpDrive,
			fields: map[string]any{"l": json.Number("0.5"), "r": json.Number("-0.5")},
			want:   Result{"l": 0.9, "r": -0.9},
		},
		{
			name:   "drive missing r",
			op:     OpDrive,
			fields: map[string]any{"l": json.Number("0.5")},
			kind:   KindValidation,
		},
		{
			name:   "arcade",
			op:     OpArcade,
			fields: map[string]any{"turn": json.Number("0"), "fwd": json.Number("0")},
			want:   Result{"l": 0.0, "r": 0.0},
		},
		{
			name:   "waist",
			op:     OpWaist,
			fields: map[string]any{"pos": json.Number("1.5")},
			want:   Result{"pos": 1.0},
		},
		{
			name:   "say",
			op:     OpSay,
			fields: map[string]any{"phraseId": json.Number("1")},
			want:   Result{"phraseId": 1, "text": "Hello, Hunter."},
		},
		{
			name:   "say unknown",
			op:     OpSay,
			fields: map[string]any{"phraseId": json.Number("5")},
			kind:   KindValidation,
		},
		{
			name:   "stop with empty body",
			op:     OpStop,
			fields: map[string]any{},
			want:   Result{},
		},
		{
			name:   "unknown op",
			op:     Op("dance"),
			fields: map[string]any{},
			kind:   KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _, _ := newTestGateway(t)

			got, err := g.Dispatch(tt.op, tt.fields)
			assert.Equal(t, tt.kind, Classify(err), "error = %v", err)
			if tt.kind != KindNone {
				return
			}
			require.Len(t, got, len(tt.want))
			for k, v := range tt.want {
				if f, ok := v.(float64); ok {
					assert.InDelta(t, f, got[k], 1e-9, "field %s", k)
				} else {
					assert.Equal(t, v, got[k], "field %s", k)
				}
			}
		})
	}
}

func TestDispatch_HeadMixed(t *testing.T) {
	g, sink, _ := newTestGateway(t)

	res, err := g.Dispatch(OpHead, map[string]any{"pan": "left", "tilt": json.Number("0.3")})
	require.Error(t, err)
	assert.Equal(t, KindValidation, Classify(err))
	assert.Equal(t, map[string]string{"pan": "pan must be a number"}, FieldErrors(err))

	tilt, ok := res["tilt"].(*float64)
	require.True(t, ok)
	require.NotNil(t, tilt)
	assert.Equal(t, 0.3, *tilt)
	assert.Equal(t, 1, sink.CallCount("SetServo"))
}

func TestDispatch_HeadActuatorFailure(t *testing.T) {
	g, sink, _ := newTestGateway(t)
	sink.SetServoFunc = func(actuator.ServoCommand) error { return errors.New("servo stalled") }

	_, err := g.Dispatch(OpHead, map[string]any{"pan": json.Number("0.5")})
	assert.Equal(t, KindActuator, Classify(err))
	assert.Contains(t, FieldErrors(err), "pan")
}

func TestDispatch_DriveActuatorFailureKeepsResult(t *testing.T) {
	g, sink, _ := newTestGateway(t)
	sink.DriveFunc = func(actuator.DriveCommand) error { return errors.New("link down") }

	res, err := g.Dispatch(OpDrive, map[string]any{"l": json.Number("0"), "r": json.Number("0")})
	assert.Equal(t, KindActuator, Classify(err))
	assert.Equal(t, Result{"l": 0.0, "r": 0.0}, res)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindNone, Classify(nil))
	assert.Equal(t, KindUnknown, Classify(errors.New("boom")))
	assert.Equal(t, KindActuator, Classify(actuator.WrapError("mock", "stop", errors.New("x"))))
	assert.Nil(t, FieldErrors(errors.New("boom")))
}

func TestHandleMessage(t *testing.T) {
	g, sink, tracker := newTestGateway(t)

	msg, err := protocol.NewCommandMessage(protocol.TypeDrive, "c1", map[string]float64{"l": 0.6, "r": 0.25})
	require.NoError(t, err)

	reply := g.HandleMessage(msg)
	require.Equal(t, protocol.TypeAck, reply.Type)
	assert.Equal(t, "c1", reply.ID)

	ack, err := reply.GetAckData()
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeDrive, ack.For)
	assert.Equal(t, map[string]any{"l": 1.0, "r": 0.45}, roundFloats(ack.Result))
	assert.Equal(t, 1, sink.CallCount("Drive"))
	assert.Equal(t, 1, tracker.count())
}

func TestHandleMessage_Rejection(t *testing.T) {
	g, sink, tracker := newTestGateway(t)

	msg, _ := protocol.NewCommandMessage(protocol.TypeSay, "s1", map[string]int{"phraseId": 5})
	reply := g.HandleMessage(msg)
	require.Equal(t, protocol.TypeError, reply.Type)

	data, err := reply.GetErrorData()
	require.NoError(t, err)
	assert.Equal(t, protocol.KindValidation, data.Kind)
	assert.Equal(t, "unknown phraseId", data.Error)
	assert.Equal(t, "s1", data.ID)
	assert.Empty(t, sink.Calls())
	assert.Equal(t, 0, tracker.count())
}

func TestHandleMessage_ActuatorError(t *testing.T) {
	g, sink, _ := newTestGateway(t)
	sink.StopFunc = func() error { return errors.New("bus fault") }

	msg, _ := protocol.NewCommandMessage(protocol.TypeStop, "", nil)
	data, err := g.HandleMessage(msg).GetErrorData()
	require.NoError(t, err)
	assert.Equal(t, protocol.KindActuator, data.Kind)
}

func TestHandleMessage_Ping(t *testing.T) {
	g, _, _ := newTestGateway(t)

	ping, _ := protocol.NewPingMessage("p1")
	ping.Timestamp = epoch.UnixMilli() - 40

	reply := g.HandleMessage(ping)
	require.Equal(t, protocol.TypePong, reply.Type)
	pong, err := reply.GetPongData()
	require.NoError(t, err)
	assert.Equal(t, int64(40), pong.LatencyMs)
}

func TestHandleBytes_ProtocolErrors(t *testing.T) {
	g, sink, _ := newTestGateway(t)

	for _, input := range []string{
		`not json`,
		`{"data":{}}`,
		`{"type":"ack"}`,
		`{"type":"drive","data":[1,2]}`,
	} {
		reply := g.HandleBytes([]byte(input))
		require.Equal(t, protocol.TypeError, reply.Type, input)
		data, err := reply.GetErrorData()
		require.NoError(t, err)
		assert.Equal(t, protocol.KindProtocol, data.Kind, input)
	}
	assert.Empty(t, sink.Calls())
}

func TestHandleBytes_StopIgnoresBadData(t *testing.T) {
	g, sink, tracker := newTestGateway(t)

	reply := g.HandleBytes([]byte(`{"type":"stop","id":"s9","data":[1,2]}`))
	require.Equal(t, protocol.TypeAck, reply.Type)
	assert.Equal(t, "s9", reply.ID)
	assert.Equal(t, 1, sink.CallCount("Stop"))
	assert.Equal(t, 1, tracker.count())
}

// roundFloats strips float noise from a decoded JSON object.
func roundFloats(v any) map[string]any {
	m, _ := v.(map[string]any)
	out := make(map[string]any, len(m))
	for k, val := range m {
		if f, ok := val.(float64); ok {
			val = float64(int64(f*1e6+0.5)) / 1e6
		}
		out[k] = val
	}
	return out
}
