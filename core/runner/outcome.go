package runner

import "github.com/zotero/translate/core/testcase"

// Status of one classified run.
type Status string

// Outcome statuses.
const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Failure reasons with fixed wording. Tooling and stored reports match
// on these strings, so they do not change casually.
const (
	ReasonTimedOut        = "timed out"
	ReasonNotSupported    = "Export tests are not yet supported"
	ReasonDetectionFailed = "Detection failed"
	ReasonNoItems         = "Translator did not return any items"
	ReasonMultipleSelect  = "Translator called selectItems multiple times"
	ReasonWrongType       = "Detection returned wrong item type"
	ReasonDataMismatch    = "Data mismatch"

	reasonArityWantMultiple = "Expected multiple results but got itemized records"
	reasonArityGotMultiple  = "Got multiple results but expected itemized records"
)

// Outcome is what one test run reports back. Reason is always present
// on failure. UpdatedTest is attached whenever a concrete result was
// collected, including on mismatch failures, so callers can render a
// diff against the expectation.
type Outcome struct {
	Status      Status
	Reason      string
	UpdatedTest *testcase.Test
}

// Succeeded reports whether the run passed.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

func success(updated *testcase.Test) Outcome {
	return Outcome{Status: StatusSuccess, UpdatedTest: updated}
}

func failure(reason string) Outcome {
	return Outcome{Status: StatusFailure, Reason: reason}
}

func failureWith(reason string, updated *testcase.Test) Outcome {
	return Outcome{Status: StatusFailure, Reason: reason, UpdatedTest: updated}
}
