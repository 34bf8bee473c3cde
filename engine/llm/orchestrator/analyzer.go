package orchestrator

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ResultReason classifies a batch of tool results.
type ResultReason string

const (
	ReasonOK       ResultReason = "ok"
	ReasonEmpty    ResultReason = "empty"
	ReasonNotFound ResultReason = "not_found"
	// ReasonPartial means some results were empty and others had data.
	ReasonPartial ResultReason = "partial"
	ReasonError   ResultReason = "error"
)

// Analysis is the analyzer verdict. TriggerIndex points at the result that
// caused the verdict, or -1.
type Analysis struct {
	ShouldRetry  bool
	Reason       ResultReason
	TriggerIndex int
	EmptyCount   int
	ErrorCount   int
}

type ResultAnalyzer interface {
	Analyze(results []ToolCallResult) Analysis
}

var (
	defaultCountFields = []string{"count", "total", "total_count", "result_count", "num_results"}
	defaultListFields  = []string{"logs", "events", "results", "log_groups", "items", "records", "matches"}
	defaultNotFound    = []string{
		"not found",
		"does not exist",
		"resourcenotfoundexception",
		"unknown log group",
		"no such",
	}
)

// ToolResultAnalyzer detects zero-count payloads and not-found errors.
// Other errors are counted but never trigger a retry on their own.
type ToolResultAnalyzer struct {
	countFields []string
	listFields  []string
	notFound    []string
}

func NewToolResultAnalyzer() *ToolResultAnalyzer {
	return &ToolResultAnalyzer{
		countFields: defaultCountFields,
		listFields:  defaultListFields,
		notFound:    defaultNotFound,
	}
}

func (a *ToolResultAnalyzer) Analyze(results []ToolCallResult) Analysis {
	out := Analysis{Reason: ReasonOK, TriggerIndex: -1}
	firstEmpty, firstNotFound, firstError := -1, -1, -1
	nonEmpty := 0
	for i := range results {
		r := &results[i]
		switch {
		case !r.Success && a.IsNotFound(r.Error):
			if firstNotFound < 0 {
				firstNotFound = i
			}
		case !r.Success:
			out.ErrorCount++
			if firstError < 0 {
				firstError = i
			}
		case a.IsEmpty(r.Payload):
			out.EmptyCount++
			if firstEmpty < 0 {
				firstEmpty = i
			}
		default:
			nonEmpty++
		}
	}
	switch {
	case firstNotFound >= 0:
		out.ShouldRetry, out.Reason, out.TriggerIndex = true, ReasonNotFound, firstNotFound
	case firstEmpty >= 0 && nonEmpty > 0:
		out.ShouldRetry, out.Reason, out.TriggerIndex = true, ReasonPartial, firstEmpty
	case firstEmpty >= 0:
		out.ShouldRetry, out.Reason, out.TriggerIndex = true, ReasonEmpty, firstEmpty
	case firstError >= 0:
		out.Reason, out.TriggerIndex = ReasonError, firstError
	}
	return out
}

// IsEmpty reports whether payload is a zero-count collection: an explicit
// count field equal to zero, an expected list that is empty, or an empty
// top-level array.
func (a *ToolResultAnalyzer) IsEmpty(payload []byte) bool {
	if len(payload) == 0 || !gjson.ValidBytes(payload) {
		return false
	}
	parsed := gjson.ParseBytes(payload)
	if parsed.IsArray() {
		return len(parsed.Array()) == 0
	}
	if !parsed.IsObject() {
		return false
	}
	for _, field := range a.countFields {
		v := parsed.Get(field)
		if v.Exists() && v.Type == gjson.Number {
			return v.Int() == 0
		}
	}
	empty := false
	for _, field := range a.listFields {
		v := parsed.Get(field)
		if !v.Exists() || !v.IsArray() {
			continue
		}
		if len(v.Array()) > 0 {
			return false
		}
		empty = true
	}
	return empty
}

func (a *ToolResultAnalyzer) IsNotFound(errText string) bool {
	if errText == "" {
		return false
	}
	lower := strings.ToLower(errText)
	for _, sig := range a.notFound {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}
