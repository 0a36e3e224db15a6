package dispatch

import "strings"

// Outcome classifies how an invocation ended.
type Outcome string

const (
	OutcomeOK               Outcome = "ok"
	OutcomeUnknownTool      Outcome = "unknown_tool"
	OutcomeInvalidArguments Outcome = "invalid_arguments"
	OutcomeUpstreamError    Outcome = "upstream_error"
	OutcomeInternalError    Outcome = "internal_error"
)

// Content is a single block of a tool response.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the response envelope of one invocation.
type Result struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`

	outcome Outcome
	err     error
}

// TextResult wraps text as a successful result.
func TextResult(text string) *Result {
	return &Result{
		Content: []Content{{Type: "text", Text: text}},
		outcome: OutcomeOK,
	}
}

// ErrorResult builds a failed result carrying text and the classified cause.
func ErrorResult(outcome Outcome, text string, err error) *Result {
	return &Result{
		Content: []Content{{Type: "text", Text: text}},
		IsError: true,
		outcome: outcome,
		err:     err,
	}
}

// Err returns the classified error behind a failed result: a
// *tools.UnknownToolError, *ValidationError or *UpstreamError. It is nil
// on success.
func (r *Result) Err() error {
	return r.err
}

// Outcome reports how the invocation ended.
func (r *Result) Outcome() Outcome {
	if r.outcome == "" {
		if r.IsError {
			return OutcomeInternalError
		}
		return OutcomeOK
	}
	return r.outcome
}

// Text joins the text of all content blocks.
func (r *Result) Text() string {
	parts := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n")
}
