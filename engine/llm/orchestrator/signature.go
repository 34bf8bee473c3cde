package orchestrator

import (
	"encoding/json"
	"fmt"
)

// StrategySignature identifies a tool + arguments combination, for example
// `fetch_logs {"log_group":"api","lookback_minutes":60}`. Object keys are
// sorted at every level, so equal arguments always produce equal signatures.
func StrategySignature(toolName string, args map[string]any) string {
	if len(args) == 0 {
		return toolName + " {}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%s %v", toolName, args)
	}
	return toolName + " " + string(b)
}
