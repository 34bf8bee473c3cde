package orchestrator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okResult(payload string) ToolCallResult {
	return ToolCallResult{ToolName: "fetch_logs", Success: true, Payload: json.RawMessage(payload)}
}

func errResult(msg string) ToolCallResult {
	return ToolCallResult{ToolName: "fetch_logs", Error: msg}
}

func TestToolResultAnalyzer_IsEmpty(t *testing.T) {
	a := NewToolResultAnalyzer()

	t.Run("Should treat explicit zero counts as empty", func(t *testing.T) {
		assert.True(t, a.IsEmpty([]byte(`{"count":0,"events":[]}`)))
		assert.True(t, a.IsEmpty([]byte(`{"total":0}`)))
	})

	t.Run("Should let a positive count win over lists", func(t *testing.T) {
		assert.False(t, a.IsEmpty([]byte(`{"count":3,"events":[]}`)))
	})

	t.Run("Should detect empty expected lists and arrays", func(t *testing.T) {
		assert.True(t, a.IsEmpty([]byte(`{"log_groups":[]}`)))
		assert.True(t, a.IsEmpty([]byte(`[]`)))
		assert.False(t, a.IsEmpty([]byte(`{"events":[{"message":"x"}]}`)))
	})

	t.Run("Should not guess about other payloads", func(t *testing.T) {
		assert.False(t, a.IsEmpty([]byte(`{"status":"ok"}`)))
		assert.False(t, a.IsEmpty([]byte(`"text"`)))
		assert.False(t, a.IsEmpty([]byte(`not json`)))
		assert.False(t, a.IsEmpty(nil))
	})
}

func TestToolResultAnalyzer_Analyze(t *testing.T) {
	a := NewToolResultAnalyzer()

	t.Run("Should retry on empty results", func(t *testing.T) {
		got := a.Analyze([]ToolCallResult{okResult(`{"count":0}`)})
		assert.True(t, got.ShouldRetry)
		assert.Equal(t, ReasonEmpty, got.Reason)
		assert.Equal(t, 0, got.TriggerIndex)
		assert.Equal(t, 1, got.EmptyCount)
	})

	t.Run("Should retry on not-found errors", func(t *testing.T) {
		got := a.Analyze([]ToolCallResult{
			okResult(`{"count":2}`),
			errResult("log group not found: payments"),
		})
		assert.True(t, got.ShouldRetry)
		assert.Equal(t, ReasonNotFound, got.Reason)
		assert.Equal(t, 1, got.TriggerIndex)
	})

	t.Run("Should recognize provider not-found signatures", func(t *testing.T) {
		assert.True(t, a.IsNotFound("ResourceNotFoundException: The specified log group does not exist."))
		assert.True(t, a.IsNotFound("unknown log group 'x'"))
		assert.False(t, a.IsNotFound("connection reset by peer"))
	})

	t.Run("Should not retry on other errors", func(t *testing.T) {
		got := a.Analyze([]ToolCallResult{errResult("connection reset by peer")})
		assert.False(t, got.ShouldRetry)
		assert.Equal(t, ReasonError, got.Reason)
		assert.Equal(t, 1, got.ErrorCount)
	})

	t.Run("Should flag mixed results as partial", func(t *testing.T) {
		got := a.Analyze([]ToolCallResult{okResult(`{"count":4}`), okResult(`{"count":0}`)})
		assert.True(t, got.ShouldRetry)
		assert.Equal(t, ReasonPartial, got.Reason)
		assert.Equal(t, 1, got.TriggerIndex)
	})

	t.Run("Should report ok for data", func(t *testing.T) {
		got := a.Analyze([]ToolCallResult{okResult(`{"count":4}`)})
		assert.False(t, got.ShouldRetry)
		assert.Equal(t, ReasonOK, got.Reason)
		assert.Equal(t, -1, got.TriggerIndex)
	})
}
