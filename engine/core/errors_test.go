package core_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/compozy/logscout/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	t.Run("Should keep code, message and cause", func(t *testing.T) {
		cause := errors.New("boom")
		err := core.NewError(cause, "SOME_CODE", map[string]any{"field": "x"})
		assert.Equal(t, "SOME_CODE: boom", err.Error())
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "x", err.Details["field"])
	})
	t.Run("Should be discoverable through wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("outer: %w", core.NewError(nil, "INNER", nil))
		code, ok := core.ErrorCode(wrapped)
		require.True(t, ok)
		assert.Equal(t, "INNER", code)
	})
	t.Run("Should copy details defensively", func(t *testing.T) {
		details := map[string]any{"a": 1}
		err := core.NewError(errors.New("x"), "C", details)
		details["a"] = 2
		assert.Equal(t, 1, err.AsMap()["details"].(map[string]any)["a"])
	})
}

func TestRedactString(t *testing.T) {
	t.Run("Should trim and truncate long strings", func(t *testing.T) {
		result := core.RedactString("   " + strings.Repeat("a", 300) + "   ")
		assert.True(t, strings.HasSuffix(result, "…"))
		assert.Equal(t, 256, len(result)-len("…"))
	})
	t.Run("Should redact Bearer tokens", func(t *testing.T) {
		assert.Equal(t, "Authorization: Bearer [REDACTED]", core.RedactString("Authorization: Bearer abc123def456"))
	})
	t.Run("Should redact key value secrets", func(t *testing.T) {
		cases := map[string]string{
			"api_key=secret123":    "api_key=[REDACTED]",
			"password=mypass123":   "password=[REDACTED]",
			"access_token=xyz789":  "access_token=[REDACTED]",
			"user bob@example.com": "user [EMAIL_REDACTED]",
		}
		for input, expected := range cases {
			assert.Equal(t, expected, core.RedactString(input), "input: %s", input)
		}
	})
	t.Run("Should redact credentials in connection strings", func(t *testing.T) {
		out := core.RedactText("dial postgres://admin:hunter2@db:5432/app failed")
		assert.NotContains(t, out, "hunter2")
		assert.Contains(t, out, "postgres://[REDACTED]@db:5432/app")
	})
	t.Run("Should return empty string for nil error", func(t *testing.T) {
		assert.Empty(t, core.RedactError(nil))
	})
}
