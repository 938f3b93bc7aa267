package coderun

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/interview-room/backend/internal/model/interview"
)

// RunSuite executes every test of suite against code with at most
// parallelism concurrent runs. Results are recorded on the suite in test
// order. The returned counters describe this attempt only.
//
// A runner failure aborts the attempt and leaves the suite reset.
func RunSuite(ctx context.Context, runner Runner, suite *interview.CodeTestSuite, language interview.Language, code string, parallelism int) (interview.CodeTestMetrics, error) {
	suite.Reset()
	if parallelism < 1 {
		parallelism = 1
	}

	results := make([]interview.RunResult, len(suite.Tests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i := range suite.Tests {
		tc := suite.Tests[i]
		g.Go(func() error {
			res, err := runner.Run(gctx, language, tc.InputData, code)
			if err != nil {
				return fmt.Errorf("test %s: %w", tc.ID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return interview.CodeTestMetrics{}, err
	}

	stats := interview.CodeTestMetrics{Attempts: 1}
	compileFailed := false
	for i := range suite.Tests {
		if suite.Tests[i].Record(results[i]) {
			stats.PassedTests++
		} else {
			stats.FailedTests++
		}
		switch results[i].Status {
		case interview.RunStatusCompileError:
			compileFailed = true
		case interview.RunStatusRuntimeError:
			stats.RuntimeErrors++
		}
	}
	if compileFailed {
		stats.CompileErrors = 1
	}

	log.Printf("[coderun] suite task=%d passed=%d failed=%d", suite.TaskIndex, stats.PassedTests, stats.FailedTests)
	return stats, nil
}

// Add accumulates an attempt into running totals.
func Add(total, attempt interview.CodeTestMetrics) interview.CodeTestMetrics {
	total.PassedTests += attempt.PassedTests
	total.FailedTests += attempt.FailedTests
	total.CompileErrors += attempt.CompileErrors
	total.RuntimeErrors += attempt.RuntimeErrors
	total.Attempts += attempt.Attempts
	return total
}
