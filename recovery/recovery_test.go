package recovery_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/wudi/pdfpages/observability"
	"github.com/wudi/pdfpages/recovery"
)

func TestStrictStrategyFails(t *testing.T) {
	s := recovery.NewStrictStrategy()
	if got := s.OnError(context.Background(), errors.New("boom"), recovery.Location{}); got != recovery.ActionFail {
		t.Fatalf("expected fail, got %v", got)
	}
}

func TestLenientStrategyCollects(t *testing.T) {
	s := recovery.NewLenientStrategy()
	cause := errors.New("unterminated dictionary")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := s.OnError(context.Background(), cause, recovery.Location{Component: "object", ByteOffset: 42}); got != recovery.ActionWarn {
				t.Errorf("expected warn, got %v", got)
			}
		}()
	}
	wg.Wait()
	if len(s.Errors) != 8 {
		t.Fatalf("expected 8 errors, got %d", len(s.Errors))
	}
	if !errors.Is(s.Errors[0], cause) {
		t.Fatalf("collected error lost its cause: %v", s.Errors[0])
	}
}

func TestLoggingStrategy(t *testing.T) {
	log := observability.NewMemoryLogger()
	s := recovery.NewLoggingStrategy(log, nil)
	if got := s.OnError(context.Background(), errors.New("bad token"), recovery.Location{Component: "scanner", ObjectNum: 7}); got != recovery.ActionWarn {
		t.Fatalf("expected warn without a delegate, got %v", got)
	}
	entries := log.Entries()
	if len(entries) != 1 || entries[0].Level != "warn" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if entries[0].Fields["object"] != 7 || entries[0].Fields["component"] != "scanner" {
		t.Fatalf("missing location fields: %+v", entries[0].Fields)
	}

	strict := recovery.NewLoggingStrategy(log, recovery.NewStrictStrategy())
	if got := strict.OnError(context.Background(), errors.New("bad"), recovery.Location{}); got != recovery.ActionFail {
		t.Fatalf("delegate decision ignored: %v", got)
	}
	if log.Count("debug") != 1 {
		t.Fatalf("fatal errors should be logged at debug")
	}
}

func TestActionString(t *testing.T) {
	cases := map[recovery.Action]string{
		recovery.ActionFail: "fail",
		recovery.ActionSkip: "skip",
		recovery.ActionFix:  "fix",
		recovery.ActionWarn: "warn",
		recovery.Action(99): "unknown",
	}
	for a, want := range cases {
		if a.String() != want {
			t.Fatalf("%d: got %q want %q", a, a.String(), want)
		}
	}
}
