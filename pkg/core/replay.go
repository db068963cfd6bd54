/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: replay.go
Description: Replays a fixed set of test cases through an executor, without mutation.
Used to reproduce crash files and to run a corpus once against a target.
*/

package core

import (
	"context"
	"fmt"
	"runtime"

	"github.com/kleascm/imgfuzz/pkg/interfaces"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ReplayResult pairs a test case with its execution result
type ReplayResult struct {
	TestCase *interfaces.TestCase
	Result   *interfaces.ExecutionResult
	Err      error
}

// ReplaySummary counts outcomes of a replay run
type ReplaySummary struct {
	Total    int
	Success  int
	Crashes  int
	Timeouts int
	Errors   int
}

// Replayer runs test cases once each with bounded concurrency
type Replayer struct {
	executor interfaces.Executor
	logger   *logrus.Logger
	workers  int
}

// NewReplayer creates a replayer; workers <= 0 means one per CPU
func NewReplayer(executor interfaces.Executor, workers int, logger *logrus.Logger) *Replayer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Replayer{executor: executor, logger: logger, workers: workers}
}

// Run executes every test case. Results keep input order. Executor errors are
// recorded per case and do not abort the run; only ctx cancellation does.
func (r *Replayer) Run(ctx context.Context, cases []*interfaces.TestCase) ([]ReplayResult, error) {
	results := make([]ReplayResult, len(cases))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, tc := range cases {
		i, tc := i, tc
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := r.executor.Execute(tc)
			results[i] = ReplayResult{TestCase: tc, Result: res, Err: err}

			if err != nil {
				r.logger.WithField("test_case_id", tc.ID).Errorf("Replay failed: %v", err)
				return nil
			}
			r.logger.WithFields(logrus.Fields{
				"test_case_id": tc.ID,
				"status":       res.Status.String(),
				"path":         res.Path,
			}).Debug("Replayed test case")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("replay interrupted: %w", err)
	}
	return results, nil
}

// Summarize counts replay outcomes by status
func Summarize(results []ReplayResult) ReplaySummary {
	var s ReplaySummary
	for _, r := range results {
		if r.TestCase == nil {
			continue
		}
		s.Total++
		if r.Err != nil || r.Result == nil {
			s.Errors++
			continue
		}
		switch r.Result.Status {
		case interfaces.StatusSuccess:
			s.Success++
		case interfaces.StatusCrash:
			s.Crashes++
		case interfaces.StatusTimeout:
			s.Timeouts++
		default:
			s.Errors++
		}
	}
	return s
}

// Divergence is a test case whose outcome differs between replays
type Divergence struct {
	TestCaseID string            `json:"test_case_id"`
	Size       int               `json:"size"`
	Statuses   map[string]string `json:"statuses"` // label -> status
}

// Diverge compares replays of the same cases. runs[i] is labelled labels[i]
// and must list results in the same case order as the others.
func Diverge(labels []string, runs [][]ReplayResult) []Divergence {
	if len(runs) < 2 || len(labels) != len(runs) {
		return nil
	}

	var out []Divergence
	for i := range runs[0] {
		statuses := make(map[string]string, len(runs))
		differs := false
		var first string
		for j, run := range runs {
			if i >= len(run) {
				continue
			}
			status := replayStatus(run[i])
			statuses[labels[j]] = status
			if j == 0 {
				first = status
			} else if status != first {
				differs = true
			}
		}
		if !differs {
			continue
		}
		d := Divergence{Statuses: statuses}
		if tc := runs[0][i].TestCase; tc != nil {
			d.TestCaseID = tc.ID
			d.Size = len(tc.Data)
		}
		out = append(out, d)
	}
	return out
}

func replayStatus(r ReplayResult) string {
	if r.Err != nil || r.Result == nil {
		return "error"
	}
	return r.Result.Status.String()
}
