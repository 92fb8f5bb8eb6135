package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

// mockSocket feeds scripted frames to the read loop and records writes.
type mockSocket struct {
	frames  [][]byte
	pos     int
	written []interface{}
	closed  bool
}

func (m *mockSocket) ReadMessage() (int, []byte, error) {
	if m.pos >= len(m.frames) {
		return 0, nil, errors.New("EOF")
	}
	f := m.frames[m.pos]
	m.pos++
	return 1, f, nil
}

func (m *mockSocket) WriteJSON(v interface{}) error {
	m.written = append(m.written, v)
	return nil
}

func (m *mockSocket) Close() error {
	m.closed = true
	return nil
}

func frame(event string, payload interface{}) []byte {
	p, _ := json.Marshal(payload)
	data, _ := json.Marshal(Envelope{Event: event, Payload: p})
	return data
}

func TestRunDispatchesByEvent(t *testing.T) {
	sock := &mockSocket{frames: [][]byte{
		frame("a", map[string]string{"v": "1"}),
		frame("b", map[string]string{"v": "2"}),
		frame("unknown", map[string]string{"v": "3"}),
	}}
	c := NewWithSocket(sock, nil)

	var gotA, gotB []string
	c.On("a", func(p json.RawMessage) error {
		gotA = append(gotA, string(p))
		return nil
	})
	c.On("b", func(p json.RawMessage) error {
		gotB = append(gotB, string(p))
		return nil
	})

	_ = c.Run(context.Background())

	if len(gotA) != 1 || len(gotB) != 1 {
		t.Errorf("dispatch counts: a=%d b=%d", len(gotA), len(gotB))
	}
}

func TestRunDropsMalformedFrames(t *testing.T) {
	sock := &mockSocket{frames: [][]byte{
		[]byte("not json"),
		frame("a", map[string]string{"v": "1"}),
	}}
	c := NewWithSocket(sock, nil)

	calls := 0
	c.On("a", func(p json.RawMessage) error {
		calls++
		return nil
	})

	_ = c.Run(context.Background())

	if calls != 1 {
		t.Errorf("expected handler to run once after malformed frame, got %d", calls)
	}
}

func TestHandlerErrorDoesNotDeregister(t *testing.T) {
	sock := &mockSocket{frames: [][]byte{
		frame("a", map[string]string{"v": "bad"}),
		frame("a", map[string]string{"v": "good"}),
	}}
	c := NewWithSocket(sock, nil)

	calls := 0
	c.On("a", func(p json.RawMessage) error {
		calls++
		if calls == 1 {
			return fmt.Errorf("rejecting payload")
		}
		return nil
	})

	_ = c.Run(context.Background())

	if calls != 2 {
		t.Errorf("handler was deregistered after error: %d calls", calls)
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	sock := &mockSocket{frames: [][]byte{
		frame("a", map[string]string{}),
		frame("b", map[string]string{}),
	}}
	c := NewWithSocket(sock, nil)

	c.On("a", func(p json.RawMessage) error {
		panic("handler bug")
	})
	bCalled := false
	c.On("b", func(p json.RawMessage) error {
		bCalled = true
		return nil
	})

	_ = c.Run(context.Background())

	if !bCalled {
		t.Error("panic in one handler stopped the read loop")
	}
}

func TestEmitWrapsInEnvelope(t *testing.T) {
	sock := &mockSocket{}
	c := NewWithSocket(sock, nil)

	if err := c.Emit("chat.send", ChatSend{ReceiverID: "u2", Content: "hi"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	if len(sock.written) != 1 {
		t.Fatalf("expected 1 write, got %d", len(sock.written))
	}
	env, ok := sock.written[0].(Envelope)
	if !ok {
		t.Fatalf("wrote %T, want Envelope", sock.written[0])
	}
	if env.Event != "chat.send" {
		t.Errorf("event = %s", env.Event)
	}
	var payload ChatSend
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("payload does not round-trip: %v", err)
	}
	if payload.ReceiverID != "u2" || payload.Content != "hi" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestEmitNotConnected(t *testing.T) {
	c := New(Config{URL: "ws://example.invalid/ws"})
	if err := c.Emit("chat.send", ChatSend{}); err == nil {
		t.Error("expected error when not connected")
	}
}

func TestPayloadValidation(t *testing.T) {
	if err := (ConfirmedMessage{ID: "m1", SenderID: "u1", ReceiverID: "u2", CreatedAt: 1}).Validate(); err != nil {
		t.Errorf("valid confirmed message rejected: %v", err)
	}
	if err := (ConfirmedMessage{SenderID: "u1", ReceiverID: "u2"}).Validate(); err == nil {
		t.Error("confirmed message without id accepted")
	}
	if err := (PendingMessage{SenderID: "u1", ReceiverID: "u2"}).Validate(); err != nil {
		t.Errorf("valid pending message rejected: %v", err)
	}
	if err := (PendingMessage{SenderID: "u1"}).Validate(); err == nil {
		t.Error("pending message without receiver accepted")
	}
	if err := (SessionStarted{}).Validate(); err == nil {
		t.Error("session event without id accepted")
	}
}
