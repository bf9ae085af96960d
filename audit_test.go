package authgate

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *recordingSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) snapshot() []AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEvent, len(s.events))
	copy(out, s.events)
	return out
}

func TestAuditDispatcherDeliversAndDrains(t *testing.T) {
	sink := &recordingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8, DropIfFull: true}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "test_event"})
	}
	d.Close()

	if got := len(sink.snapshot()); got != 5 {
		t.Fatalf("delivered = %d, want 5", got)
	}
	if d.Dropped() != 0 {
		t.Fatalf("Dropped() = %d, want 0", d.Dropped())
	}
}

func TestAuditDispatcherEmitAfterClose(t *testing.T) {
	sink := &recordingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 2, DropIfFull: true}, sink)
	d.Close()

	d.Emit(context.Background(), AuditEvent{EventType: "late"})
	if got := len(sink.snapshot()); got != 0 {
		t.Fatalf("delivered after close = %d, want 0", got)
	}
}

func TestAuditDispatcherDisabled(t *testing.T) {
	if d := newAuditDispatcher(AuditConfig{Enabled: false}, nil); d != nil {
		t.Fatal("disabled config must yield a nil dispatcher")
	}

	var d *auditDispatcher
	d.Emit(context.Background(), AuditEvent{EventType: "noop"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: "password_reset_complete",
		LoginID:   "u1",
		Success:   true,
		Metadata:  map[string]string{"channel": "otp"},
	})

	line := strings.TrimSpace(buf.String())
	var decoded AuditEvent
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("output is not one JSON object per line: %v", err)
	}
	if decoded.EventType != "password_reset_complete" || !decoded.Success {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestEngineEmitsAuditEvents(t *testing.T) {
	mrEngine := newTestEngine(t)
	ctx := WithClientIP(context.Background(), "203.0.113.7")
	ctx = WithActor(ctx, "support-agent")

	mrEngine.directory.put(provisionedAccount("u1", "u1@example.com"))

	sink := &recordingSink{}
	mrEngine.engine.audit = newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16, DropIfFull: true}, sink)

	if _, err := mrEngine.engine.RequestPasswordReset(ctx, "u1"); err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}
	mrEngine.engine.audit.Close()

	events := sink.snapshot()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	event := events[0]
	if event.EventType != auditEventPasswordResetRequest || !event.Success {
		t.Fatalf("event = %+v", event)
	}
	if event.IP != "203.0.113.7" || event.Actor != "support-agent" {
		t.Fatalf("caller identity not propagated: %+v", event)
	}
}
