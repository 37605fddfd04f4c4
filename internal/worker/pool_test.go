package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"fixflow/internal/issue"
	"fixflow/internal/workflow"
)

func okRun(final issue.Status) RunFunc {
	return func(ctx context.Context, issueID string) (*workflow.Report, error) {
		return &workflow.Report{IssueID: issueID, Final: final, Archived: true}, nil
	}
}

func TestPool_Sequential(t *testing.T) {
	p := NewPool(okRun(issue.StatusResolved), 1)
	results := p.Run(context.Background(), []string{"a", "b", "c"})

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, id := range []string{"a", "b", "c"} {
		if results[i].IssueID != id {
			t.Fatalf("results out of input order: %v", results)
		}
		if results[i].Error != nil || results[i].Final != issue.StatusResolved {
			t.Fatalf("unexpected result: %+v", results[i])
		}
	}
}

func TestPool_ParallelPreservesOrder(t *testing.T) {
	p := NewPool(okRun(issue.StatusResolved), 4)
	ids := []string{"a", "b", "c", "d", "e", "f"}
	results := p.Run(context.Background(), ids)

	if len(results) != len(ids) {
		t.Fatalf("expected %d results, got %d", len(ids), len(results))
	}
	for i, id := range ids {
		if results[i].IssueID != id {
			t.Fatalf("results out of input order: %v", results)
		}
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	var active, peak int32
	var mu sync.Mutex

	run := func(ctx context.Context, issueID string) (*workflow.Report, error) {
		n := atomic.AddInt32(&active, 1)
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()
		defer atomic.AddInt32(&active, -1)
		return &workflow.Report{IssueID: issueID, Final: issue.StatusResolved}, nil
	}

	p := NewPool(run, 2)
	p.Run(context.Background(), []string{"a", "b", "c", "d", "e", "f", "g", "h"})

	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Fatalf("concurrency bound exceeded: peak %d", peak)
	}
}

func TestPool_FailureDoesNotStopOthers(t *testing.T) {
	boom := errors.New("agent unavailable")
	run := func(ctx context.Context, issueID string) (*workflow.Report, error) {
		if issueID == "bad" {
			return nil, boom
		}
		return &workflow.Report{IssueID: issueID, Final: issue.StatusResolved, Archived: true}, nil
	}

	p := NewPool(run, 2)
	results := p.Run(context.Background(), []string{"a", "bad", "c"})

	if Failed(results) != 1 {
		t.Fatalf("expected 1 failure, got %d", Failed(results))
	}
	if results[0].Error != nil || results[2].Error != nil {
		t.Fatalf("healthy issues affected by the failing one: %v", results)
	}
	if !errors.Is(results[1].Error, boom) {
		t.Fatalf("failure not reported: %v", results[1].Error)
	}
}

func TestPool_ZeroWorkersMeansSequential(t *testing.T) {
	p := NewPool(okRun(issue.StatusResolved), 0)
	results := p.Run(context.Background(), []string{"a"})
	if len(results) != 1 || results[0].Error != nil {
		t.Fatalf("unexpected results: %v", results)
	}
}
