// Package worker provides parallel issue execution for fixflow.
// Each worker drives one issue's full workflow; the per-issue file lock
// in the artifact store keeps two workers off the same issue even
// across processes.
package worker

import (
	"context"
	"sync"
	"time"

	"fixflow/internal/issue"
	"fixflow/internal/workflow"
)

// IssueResult holds the outcome of running one issue's workflow.
type IssueResult struct {
	IssueID  string
	Final    issue.Status
	Archived bool
	Duration time.Duration
	Error    error
}

// RunFunc drives one issue's workflow to completion.
// workflow.Orchestrator.Run satisfies it.
type RunFunc func(ctx context.Context, issueID string) (*workflow.Report, error)

// Pool runs issue workflows concurrently, up to maxWorkers at a time.
type Pool struct {
	run        RunFunc
	maxWorkers int
}

// NewPool creates a pool. maxWorkers below 1 means sequential.
func NewPool(run RunFunc, maxWorkers int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Pool{run: run, maxWorkers: maxWorkers}
}

// Run drives every issue to completion and returns results in input
// order. A failing issue never stops the others.
func (p *Pool) Run(ctx context.Context, issueIDs []string) []IssueResult {
	if p.maxWorkers <= 1 || len(issueIDs) <= 1 {
		return p.runSequential(ctx, issueIDs)
	}
	return p.runParallel(ctx, issueIDs)
}

func (p *Pool) runSequential(ctx context.Context, issueIDs []string) []IssueResult {
	results := make([]IssueResult, 0, len(issueIDs))
	for _, id := range issueIDs {
		results = append(results, p.runOne(ctx, id))
	}
	return results
}

func (p *Pool) runParallel(ctx context.Context, issueIDs []string) []IssueResult {
	sem := make(chan struct{}, p.maxWorkers)
	var wg sync.WaitGroup

	results := make([]IssueResult, len(issueIDs))

	for i, id := range issueIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = p.runOne(ctx, id)
		}(i, id)
	}

	wg.Wait()
	return results
}

func (p *Pool) runOne(ctx context.Context, issueID string) IssueResult {
	start := time.Now()
	report, err := p.run(ctx, issueID)

	res := IssueResult{
		IssueID:  issueID,
		Duration: time.Since(start),
		Error:    err,
	}
	if report != nil {
		res.Final = report.Final
		res.Archived = report.Archived
	}
	return res
}

// Failed counts results that ended in error.
func Failed(results []IssueResult) int {
	n := 0
	for _, r := range results {
		if r.Error != nil {
			n++
		}
	}
	return n
}
