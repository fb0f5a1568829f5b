package eventbus

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

type runFinished struct {
	target string
}

func TestPublisher_Subscribe(t *testing.T) {
	publisher := NewEventPublisher(nil)
	var got string
	publisher.Subscribe(func(e *runFinished) {
		got = e.target
	})
	publisher.Publish(&runFinished{target: "funding"})
	if got != "funding" {
		t.Errorf("expected handler to receive event, got %q", got)
	}
}

func TestPublisher_NoMatchingSubscribers(t *testing.T) {
	type otherEvent struct{}

	logBuffer := bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(&logBuffer)
	log.SetLevel(logrus.WarnLevel)

	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *runFinished) {
		t.Error("should not be called")
	})
	publisher.Publish(&otherEvent{})

	if output := logBuffer.String(); !strings.Contains(output, "no matching subscribers") {
		t.Errorf("expected no-subscriber warning, got: %q", output)
	}
}

func TestMatchSignature(t *testing.T) {
	type a struct{}
	type b struct{}
	if !MatchSignature(func(e *a) {}, []any{&a{}}) {
		t.Error("expected true for matching pointer arg")
	}
	if MatchSignature(func(e *a) {}, []any{&b{}}) {
		t.Error("expected false for mismatched type")
	}
	if MatchSignature(func(e *a) {}, []any{}) {
		t.Error("expected false for arity mismatch")
	}
	if !MatchSignature(func(ctx context.Context) {}, []any{context.Background()}) {
		t.Error("expected true for interface parameter")
	}
}

func TestPublisher_PanicRecovery(t *testing.T) {
	logBuffer := bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(&logBuffer)
	log.SetLevel(logrus.ErrorLevel)

	publisher := NewEventPublisher(log)

	called := false
	publisher.Subscribe(func(e *runFinished) {
		panic("intentional panic for testing")
	})
	publisher.Subscribe(func(e *runFinished) {
		called = true
	})

	publisher.Publish(&runFinished{target: "jobs"})

	if !called {
		t.Error("handler after the panicking one should still run")
	}
	output := logBuffer.String()
	if !strings.Contains(output, "panicked") {
		t.Errorf("panic should have been logged, got: %q", output)
	}
}

func TestPublisher_Unsubscribe(t *testing.T) {
	publisher := NewEventPublisher(nil)
	handler := func(e *runFinished) {
		t.Error("should not be called after unsubscribe")
	}
	publisher.Subscribe(handler)
	if publisher.SubscribersCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", publisher.SubscribersCount())
	}
	publisher.Unsubscribe(handler)
	if publisher.SubscribersCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", publisher.SubscribersCount())
	}
}
