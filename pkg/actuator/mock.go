package actuator

import (
	"sync"
	"time"
)

// Mock implements Sink for testing.
// All methods can be customized via function fields; nil fields succeed.
type Mock struct {
	DriveFunc    func(cmd DriveCommand) error
	SetServoFunc func(cmd ServoCommand) error
	SayFunc      func(cmd SpeechCommand) error
	StopFunc     func() error

	// Tracking
	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Drive  DriveCommand
	Servo  ServoCommand
	Speech SpeechCommand
	Time   time.Time
}

// NewMock creates a mock sink where every command succeeds.
func NewMock() *Mock {
	return &Mock{}
}

// Name returns "mock".
func (m *Mock) Name() string { return "mock" }

// Drive records the call and invokes DriveFunc.
func (m *Mock) Drive(cmd DriveCommand) error {
	m.record(MockCall{Method: "Drive", Drive: cmd})
	if m.DriveFunc != nil {
		return m.DriveFunc(cmd)
	}
	return nil
}

// SetServo records the call and invokes SetServoFunc.
func (m *Mock) SetServo(cmd ServoCommand) error {
	m.record(MockCall{Method: "SetServo", Servo: cmd})
	if m.SetServoFunc != nil {
		return m.SetServoFunc(cmd)
	}
	return nil
}

// Say records the call and invokes SayFunc.
func (m *Mock) Say(cmd SpeechCommand) error {
	m.record(MockCall{Method: "Say", Speech: cmd})
	if m.SayFunc != nil {
		return m.SayFunc(cmd)
	}
	return nil
}

// Stop records the call and invokes StopFunc.
func (m *Mock) Stop() error {
	m.record(MockCall{Method: "Stop"})
	if m.StopFunc != nil {
		return m.StopFunc()
	}
	return nil
}

// Close records the call.
func (m *Mock) Close() error {
	m.record(MockCall{Method: "Close"})
	return nil
}

func (m *Mock) record(call MockCall) {
	call.Time = time.Now()
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// LastCall returns the most recent call, or false if there were none.
func (m *Mock) LastCall() (MockCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return MockCall{}, false
	}
	return m.calls[len(m.calls)-1], true
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}
