package interview

import (
	"fmt"
	"strings"
)

// Run statuses reported by the code runner.
const (
	RunStatusSuccess      = "success"
	RunStatusCompileError = "compile_error"
	RunStatusRuntimeError = "runtime_error"
)

// RunResult is the outcome of executing a program once.
type RunResult struct {
	Status        string `json:"status"`
	Exception     string `json:"exception,omitempty"`
	Stdin         string `json:"stdin,omitempty"`
	Stdout        string `json:"stdout,omitempty"`
	Stderr        string `json:"stderr,omitempty"`
	ExecutionTime int    `json:"executionTime,omitempty"`
}

// CodeTestCase is one stdin/stdout pair for a coding task.
type CodeTestCase struct {
	ID             string `json:"id"`
	InputData      string `json:"input_data"`
	ExpectedOutput string `json:"expected_output"`
	Hidden         bool   `json:"is_hidden"`

	Executed bool       `json:"executed"`
	Passed   bool       `json:"passed"`
	Result   *RunResult `json:"result,omitempty"`
}

// Record stores a run result and reports whether the output matched.
func (c *CodeTestCase) Record(result RunResult) bool {
	c.Executed = true
	c.Result = &result
	c.Passed = result.Status == RunStatusSuccess &&
		strings.TrimSpace(result.Stdout) == strings.TrimSpace(c.ExpectedOutput)
	return c.Passed
}

// CodeTestSuite groups the tests generated for one task.
type CodeTestSuite struct {
	TaskIndex int            `json:"taskIndex"`
	Tests     []CodeTestCase `json:"tests"`
}

// Clone returns a deep copy.
func (s *CodeTestSuite) Clone() *CodeTestSuite {
	if s == nil {
		return nil
	}
	out := *s
	out.Tests = append([]CodeTestCase(nil), s.Tests...)
	return &out
}

// Reset clears post-execution fields so the suite can run again.
func (s *CodeTestSuite) Reset() {
	for i := range s.Tests {
		s.Tests[i].Executed = false
		s.Tests[i].Passed = false
		s.Tests[i].Result = nil
	}
}

// PromptText summarises executed tests for the solution-check prompt.
// Hidden tests report only their verdict.
func (s *CodeTestSuite) PromptText() string {
	if s == nil || len(s.Tests) == 0 {
		return "(no tests)"
	}
	var b strings.Builder
	for i, tc := range s.Tests {
		if i > 0 {
			b.WriteString("\n")
		}
		verdict := "not run"
		if tc.Executed {
			verdict = "failed"
			if tc.Passed {
				verdict = "passed"
			}
		}
		if tc.Hidden {
			fmt.Fprintf(&b, "%s (hidden): %s", tc.ID, verdict)
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n  input: %q\n  expected: %q", tc.ID, verdict, tc.InputData, tc.ExpectedOutput)
		if tc.Result != nil {
			fmt.Fprintf(&b, "\n  status: %s\n  stdout: %q", tc.Result.Status, tc.Result.Stdout)
			if tc.Result.Stderr != "" {
				fmt.Fprintf(&b, "\n  stderr: %q", tc.Result.Stderr)
			}
		}
	}
	return b.String()
}
