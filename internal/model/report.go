package model

// FailedTest describes one failing test in a CI run.
type FailedTest struct {
	TestName     string  `json:"test_name"`
	ErrorMessage string  `json:"error_message"`
	StackTrace   *string `json:"stack_trace,omitempty"`
}

// FailureReport is the caller-supplied description of one CI failure.
// Either FailedTests or FailureLogs must resolve to at least one failed test.
type FailureReport struct {
	CommitSHA   string       `json:"commit_sha"`
	Branch      string       `json:"branch"`
	Author      string       `json:"author"`
	FailedTests []FailedTest `json:"failed_tests,omitempty"`
	Diff        *string      `json:"diff,omitempty"`
	FailureLogs *string      `json:"failure_logs,omitempty"`
}
