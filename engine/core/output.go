package core

// Output is the JSON object a tool returns.
type Output map[string]any
