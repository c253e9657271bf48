package authgate

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authgate/internal/testidp"
	"github.com/MrEthical07/authgate/session"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type captureSink struct {
	events chan AuditEvent
}

func newCaptureSink(buffer int) *captureSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &captureSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *captureSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *captureSink) collect(n int, within time.Duration) []AuditEvent {
	events := make([]AuditEvent, 0, n)
	timeout := time.After(within)
	for len(events) < n {
		select {
		case ev := <-s.events:
			events = append(events, ev)
		case <-timeout:
			return events
		}
	}
	return events
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}
	g := newGateway(t, func(cfg *Config, b *Builder) {
		cfg.Audit.Enabled = false
		b.WithAuditSink(sink)
	})

	g.do(t, http.MethodGet, "/auth")
	g.do(t, http.MethodGet, "/users")
	g.engine.Close()

	if sink.Count() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.Count())
	}
}

func TestAuditFlowEvents(t *testing.T) {
	sink := newCaptureSink(16)
	g := newGateway(t, func(cfg *Config, b *Builder) {
		cfg.Audit.Enabled = true
		cfg.Audit.DropIfFull = false
		b.WithAuditSink(sink)
	})

	g.do(t, http.MethodGet, "/auth")
	cookie := g.login(t, "bob", "user")
	g.do(t, http.MethodDelete, "/users/3", cookie)
	g.do(t, http.MethodGet, "/callback?error=access_denied")
	g.do(t, http.MethodGet, "/logout", cookie)

	events := sink.collect(5, 2*time.Second)
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}

	wantTypes := []string{
		auditEventLoginInitiated,
		auditEventCallbackSuccess,
		auditEventAccessDenied,
		auditEventCallbackFailure,
		auditEventLogout,
	}
	for i, ev := range events {
		if ev.EventType != wantTypes[i] {
			t.Fatalf("event %d: expected %q, got %q", i, wantTypes[i], ev.EventType)
		}
		if _, err := uuid.Parse(ev.ID); err != nil {
			t.Fatalf("event %d: expected uuid id, got %q", i, ev.ID)
		}
		if ev.Timestamp.IsZero() {
			t.Fatalf("event %d: expected timestamp", i)
		}
	}

	success := events[1]
	if success.Username != "bob" || success.Role != "user" || !success.Success {
		t.Fatalf("unexpected callback_success event: %+v", success)
	}
	denied := events[2]
	if denied.Status != http.StatusForbidden || denied.Error != string(auditErrForbidden) {
		t.Fatalf("unexpected access_denied event: %+v", denied)
	}
	failure := events[3]
	if failure.Error != string(auditErrProviderError) || failure.Status != http.StatusUnauthorized {
		t.Fatalf("unexpected callback_failure event: %+v", failure)
	}
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	sink := newCaptureSink(16)
	g := newGateway(t, func(cfg *Config, b *Builder) {
		cfg.Audit.Enabled = true
		cfg.Audit.DropIfFull = false
		b.WithAuditSink(sink)
	})

	token, err := g.idp.Sign("alice", "admin", time.Hour)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	code := g.idp.IssueCode(testidp.Grant{AccessToken: token})
	rec := g.do(t, http.MethodGet, "/callback?code="+code)
	if rec.Code != http.StatusFound {
		t.Fatalf("callback failed: %d", rec.Code)
	}
	cookie := findCookie(t, rec, session.DefaultCookieName)
	g.do(t, http.MethodGet, "/logout", cookie)

	events := sink.collect(2, 2*time.Second)
	if len(events) == 0 {
		t.Fatal("expected at least one audit event")
	}

	sessionID, ok := g.engine.cookies.Decode(cookie.Value)
	if !ok {
		t.Fatal("expected cookie to decode")
	}
	needles := []string{token, code, cookie.Value, sessionID}
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		for _, needle := range needles {
			if strings.Contains(string(data), needle) {
				t.Fatalf("sensitive value leaked in %s event", ev.EventType)
			}
		}
	}
}

func TestAuditBufferFullDropIfFullTrueDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	start := time.Now()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if dispatcher.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestAuditBufferFullDropIfFullFalseBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{
		ID:        "id-1",
		Timestamp: time.Now().UTC(),
		EventType: auditEventCallbackSuccess,
		Username:  "alice",
		IP:        "127.0.0.1",
		Success:   true,
	})
	sink.Emit(context.Background(), AuditEvent{EventType: auditEventLogout})

	out := buf.String()
	if !strings.Contains(out, `"event_type":"callback_success"`) {
		t.Fatal("expected JSON log line to contain event type")
	}
	if !strings.Contains(out, `"username":"alice"`) {
		t.Fatal("expected JSON log line to contain username")
	}
	if n := strings.Count(out, "\n"); n != 2 {
		t.Fatalf("expected 2 lines, got %d", n)
	}
}

func TestAuditDispatcherCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	sink := &countingSink{}
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 4,
		DropIfFull: true,
	}, sink)

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Close()
	dispatcher.Close()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	if sink.Count() != 1 {
		t.Fatalf("expected buffered event flushed on close, got %d", sink.Count())
	}
	if dispatcher.Dropped() != 1 {
		t.Fatalf("expected emit after close counted as dropped, got %d", dispatcher.Dropped())
	}
}

func TestAuditDispatcherAccountsForEveryEventAcrossClose(t *testing.T) {
	for _, dropIfFull := range []bool{true, false} {
		sink := &countingSink{}
		dispatcher := newAuditDispatcher(AuditConfig{
			Enabled:    true,
			BufferSize: 2,
			DropIfFull: dropIfFull,
		}, sink)

		const senders, perSender = 8, 200
		var wg sync.WaitGroup
		for i := 0; i < senders; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < perSender; j++ {
					dispatcher.Emit(context.Background(), AuditEvent{EventType: "e"})
				}
			}()
		}
		time.Sleep(time.Millisecond)
		dispatcher.Close()
		wg.Wait()

		if got := uint64(sink.Count()) + dispatcher.Dropped(); got != senders*perSender {
			t.Fatalf("dropIfFull=%v: delivered+dropped = %d, want %d", dropIfFull, got, senders*perSender)
		}
	}
}

func TestAuditDispatcherDisabledIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, &countingSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("expected zero drops on nil dispatcher")
	}
}
