package securityevent

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type memSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *memSink) Record(ctx context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestFanout_DeliversToAllSinks(t *testing.T) {
	a, b := &memSink{}, &memSink{}
	f := NewFanout(a, nil, b)

	err := f.Record(context.Background(), Event{
		Severity: SeverityWarning, Type: TypeReuseDetected, SubjectID: "u1",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if a.count() != 1 || b.count() != 1 {
		t.Errorf("delivery counts: a=%d b=%d, want 1 each", a.count(), b.count())
	}
	if a.events[0].ID == "" {
		t.Error("fanout should assign an event ID")
	}
}

func TestFanout_SinkFailureDoesNotStopOthers(t *testing.T) {
	broken := &memSink{err: errors.New("connection refused")}
	ok := &memSink{}
	f := NewFanout(broken, ok)

	err := f.Record(context.Background(), Event{Type: TypeLogin, SubjectID: "u1"})
	if err == nil {
		t.Error("Record should report the sink failure")
	}
	if ok.count() != 1 {
		t.Errorf("healthy sink deliveries = %d, want 1", ok.count())
	}
}

func TestRecordAsync_NilSink(t *testing.T) {
	// Must not panic or spawn anything.
	RecordAsync(nil, Event{Type: TypeLogin})
}
