package shotsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/attract-vse/attract/internal/strips"
)

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for runner result")
		return Result{}
	}
}

func TestRunnerExecutesRequests(t *testing.T) {
	client := newFakeClient()
	client.seedShot("node_old", 0)
	store := strips.NewMemoryStore(movieStrip("s1", 10, 0, 24), movieStrip("s2", 5, 0, 24))
	engine := newTestEngine(t, client, store, EngineOptions{})
	runner := NewRunner(context.Background(), engine, RunnerOptions{Workers: 2, QueueSize: 4})
	defer runner.Close()

	created, err := runner.Submit(Request{Op: OpCreate, StripID: "s1"})
	if err != nil {
		t.Fatalf("submit create: %v", err)
	}
	relinked, err := runner.Submit(Request{Op: OpRelink, StripID: "s2", RemoteID: "node_old"})
	if err != nil {
		t.Fatalf("submit relink: %v", err)
	}
	if res := waitResult(t, created); res.Err != nil {
		t.Fatalf("create failed: %v", res.Err)
	}
	if res := waitResult(t, relinked); res.Err != nil {
		t.Fatalf("relink failed: %v", res.Err)
	}

	reordered, err := runner.Submit(Request{Op: OpReorder})
	if err != nil {
		t.Fatalf("submit reorder: %v", err)
	}
	res := waitResult(t, reordered)
	if res.Err != nil || res.Report == nil {
		t.Fatalf("reorder failed: %v", res.Err)
	}
	if len(res.Report.Ordered) != 2 || res.Report.Ordered[0].StripID != "s2" {
		t.Fatalf("unexpected reorder report %+v", res.Report)
	}
}

func TestRunnerReportsMissingStrip(t *testing.T) {
	engine := newTestEngine(t, newFakeClient(), strips.NewMemoryStore(), EngineOptions{})
	runner := NewRunner(context.Background(), engine, RunnerOptions{})
	defer runner.Close()

	ch, err := runner.Submit(Request{Op: OpUpdate, StripID: "ghost"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res := waitResult(t, ch); !errors.Is(res.Err, strips.ErrStripNotFound) {
		t.Fatalf("expected ErrStripNotFound, got %v", res.Err)
	}
}

func TestRunnerRejectsAfterClose(t *testing.T) {
	engine := newTestEngine(t, newFakeClient(), strips.NewMemoryStore(), EngineOptions{})
	runner := NewRunner(context.Background(), engine, RunnerOptions{})
	runner.Close()
	runner.Close()
	if _, err := runner.Submit(Request{Op: OpReorder}); !errors.Is(err, ErrRunnerClosed) {
		t.Fatalf("expected ErrRunnerClosed, got %v", err)
	}
}

func TestExecuteUnknownOperation(t *testing.T) {
	store := strips.NewMemoryStore(movieStrip("s1", 0, 0, 10))
	engine := newTestEngine(t, newFakeClient(), store, EngineOptions{})
	res := engine.Execute(context.Background(), Request{Op: "explode", StripID: "s1"})
	if !errors.Is(res.Err, ErrUnknownOperation) {
		t.Fatalf("expected ErrUnknownOperation, got %v", res.Err)
	}
}

func TestParseOperation(t *testing.T) {
	op, err := ParseOperation(" Reorder ")
	if err != nil || op != OpReorder {
		t.Fatalf("expected reorder, got %q err=%v", op, err)
	}
	if _, err := ParseOperation("merge"); !errors.Is(err, ErrUnknownOperation) {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}
}

func TestAvailableOperations(t *testing.T) {
	unbound := movieStrip("s1", 0, 0, 10)
	if ops := AvailableOperations(unbound); len(ops) != 2 || ops[0] != OpCreate || ops[1] != OpRelink {
		t.Fatalf("unexpected ops for unbound strip: %v", ops)
	}
	bound := boundStrip("s2", "node_1", 0)
	if ops := AvailableOperations(bound); len(ops) != 4 || ops[0] != OpUpdate {
		t.Fatalf("unexpected ops for bound strip: %v", ops)
	}
	sound := movieStrip("s3", 0, 0, 10)
	sound.Kind = strips.KindSound
	if ops := AvailableOperations(sound); len(ops) != 0 {
		t.Fatalf("sound strips offer nothing, got %v", ops)
	}
}
