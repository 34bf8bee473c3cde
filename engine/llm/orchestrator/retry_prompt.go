package orchestrator

import (
	"bytes"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
	"text/template"
	"time"
	"unicode"

	"github.com/Masterminds/sprig/v3"
	"github.com/compozy/logscout/engine/llm/orchestrator/prompts"
)

// RetryTrigger is the condition that asked for a corrective prompt.
type RetryTrigger string

const (
	TriggerEmpty    RetryTrigger = "empty"
	TriggerNotFound RetryTrigger = "not_found"
	TriggerIntent   RetryTrigger = "intent_without_action"
	TriggerPartial  RetryTrigger = "partial"
	TriggerGivingUp RetryTrigger = "giving_up"
)

const (
	toolListLogGroups = "list_log_groups"
	toolFetchLogs     = "fetch_logs"
	toolSearchLogs    = "search_logs"

	argLookback = "lookback_minutes"
	argStart    = "start_time_iso"
	argEnd      = "end_time_iso"
	argPattern  = "pattern"
	argLogGroup = "log_group"
	argPrefix   = "prefix"

	defaultLookbackMinutes = 60
	maxLookbackMinutes     = 30 * 24 * 60

	exhaustedTemplate = "exhausted.tmpl"
)

// Strategy is one concrete alternative the LLM can try next.
type Strategy struct {
	ToolName    string
	Arguments   map[string]any
	Description string
}

func (s Strategy) Signature() string { return StrategySignature(s.ToolName, s.Arguments) }

// RetryRequest describes what went wrong. ToolName and Arguments default to
// the last call recorded in the RetryState.
type RetryRequest struct {
	Trigger   RetryTrigger
	Intent    DetectedIntent
	ToolName  string
	Arguments map[string]any
	Detail    string
}

// RetryPrompt is the rendered corrective instruction. Exhausted is set when
// no untried strategy was left and the prompt asks the LLM to report the
// limitation instead.
type RetryPrompt struct {
	Text       string
	Template   string
	Suggestion *Strategy
	Exhausted  bool
}

type PromptGenerator interface {
	Generate(state *RetryState, req RetryRequest) (RetryPrompt, error)
}

type promptData struct {
	Trigger           RetryTrigger
	AttemptsRemaining int
	MaxAttempts       int
	Tried             []string
	ToolName          string
	Detail            string
	Intent            DetectedIntent
	Suggestion        *Strategy
	GaveUp            bool
}

// RetryPromptGenerator turns a detected problem into a corrective system
// message. Candidate strategies are derived deterministically from the last
// tool call and are never suggested twice within a turn.
type RetryPromptGenerator struct {
	maxAttempts     int
	expansionFactor float64
	templates       *template.Template
}

func NewRetryPromptGenerator(maxAttempts int, expansionFactor float64) (*RetryPromptGenerator, error) {
	if expansionFactor < 1 {
		return nil, newConfigError("time_expansion_factor", expansionFactor, "must be at least 1")
	}
	tpl, err := template.New("retry_prompts").
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		ParseFS(prompts.TemplateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse retry prompt templates: %w", err)
	}
	return &RetryPromptGenerator{
		maxAttempts:     maxAttempts,
		expansionFactor: expansionFactor,
		templates:       tpl,
	}, nil
}

func (g *RetryPromptGenerator) Generate(state *RetryState, req RetryRequest) (RetryPrompt, error) {
	if state == nil {
		state = NewRetryState()
	}
	toolName, args := req.ToolName, req.Arguments
	if toolName == "" {
		toolName, args = state.LastToolName, state.LastArguments
	}
	var suggestion *Strategy
	for _, candidate := range g.Candidates(req.Trigger, toolName, args) {
		if state.HasTried(candidate.Signature()) {
			continue
		}
		chosen := candidate
		suggestion = &chosen
		break
	}
	name := templateFor(req.Trigger)
	exhausted := suggestion == nil && req.Trigger != TriggerIntent
	if exhausted {
		name = exhaustedTemplate
	}
	data := promptData{
		Trigger:           req.Trigger,
		AttemptsRemaining: max(state.AttemptsRemaining(g.maxAttempts)-1, 0),
		MaxAttempts:       g.maxAttempts,
		Tried:             state.StrategiesTried(),
		ToolName:          toolName,
		Detail:            req.Detail,
		Intent:            req.Intent,
		Suggestion:        suggestion,
		GaveUp:            req.Trigger == TriggerGivingUp,
	}
	var buf bytes.Buffer
	if err := g.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return RetryPrompt{}, fmt.Errorf("render %s: %w", name, err)
	}
	return RetryPrompt{
		Text:       strings.TrimSpace(buf.String()),
		Template:   name,
		Suggestion: suggestion,
		Exhausted:  exhausted,
	}, nil
}

func templateFor(trigger RetryTrigger) string {
	switch trigger {
	case TriggerNotFound:
		return "not_found.tmpl"
	case TriggerIntent:
		return "intent_without_action.tmpl"
	case TriggerPartial:
		return "partial.tmpl"
	default:
		return "empty.tmpl"
	}
}

// Candidates lists the alternatives for a call in preference order. For
// not-found failures verifying names comes first; otherwise widening the
// time window does.
func (g *RetryPromptGenerator) Candidates(trigger RetryTrigger, toolName string, args map[string]any) []Strategy {
	var out []Strategy
	switch toolName {
	case toolFetchLogs, toolSearchLogs:
		if s, ok := g.expandTime(toolName, args); ok {
			out = append(out, s)
		}
		if toolName == toolSearchLogs {
			if s, ok := relaxPattern(args); ok {
				out = append(out, s)
			}
			if s, ok := dropArgument(toolSearchLogs, args, argLogGroup,
				"search across all log groups instead of a single one"); ok {
				out = append(out, s)
			}
		}
	case toolListLogGroups:
		if s, ok := dropArgument(toolListLogGroups, args, argPrefix, "list log groups without a prefix filter"); ok {
			out = append(out, s)
		}
	}
	listAll := Strategy{
		ToolName:    toolListLogGroups,
		Arguments:   map[string]any{},
		Description: "list the available log groups to verify the exact names",
	}
	if trigger == TriggerNotFound {
		out = append([]Strategy{listAll}, out...)
	} else {
		out = append(out, listAll)
	}
	return dedupeStrategies(out)
}

func (g *RetryPromptGenerator) expandTime(toolName string, args map[string]any) (Strategy, bool) {
	if s, ok := g.expandRange(toolName, args); ok {
		return s, true
	}
	lookback, ok := numberArg(args, argLookback)
	if !ok || lookback <= 0 {
		lookback = defaultLookbackMinutes
	}
	expanded := min(int(math.Ceil(lookback*g.expansionFactor)), maxLookbackMinutes)
	if float64(expanded) <= lookback {
		return Strategy{}, false
	}
	next := maps.Clone(args)
	if next == nil {
		next = map[string]any{}
	}
	delete(next, argStart)
	delete(next, argEnd)
	next[argLookback] = expanded
	return Strategy{
		ToolName:  toolName,
		Arguments: next,
		Description: fmt.Sprintf("expand %s from %s to %d (%sx the previous window)",
			argLookback, formatNumber(lookback), expanded, formatNumber(g.expansionFactor)),
	}, true
}

func (g *RetryPromptGenerator) expandRange(toolName string, args map[string]any) (Strategy, bool) {
	startRaw, okStart := args[argStart].(string)
	endRaw, okEnd := args[argEnd].(string)
	if !okStart || !okEnd {
		return Strategy{}, false
	}
	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		return Strategy{}, false
	}
	end, err := time.Parse(time.RFC3339, endRaw)
	if err != nil || !end.After(start) {
		return Strategy{}, false
	}
	window := end.Sub(start)
	widened := time.Duration(float64(window) * g.expansionFactor)
	if widened <= window {
		return Strategy{}, false
	}
	next := maps.Clone(args)
	next[argStart] = end.Add(-widened).UTC().Format(time.RFC3339)
	return Strategy{
		ToolName:  toolName,
		Arguments: next,
		Description: fmt.Sprintf("widen the time range to start at %s (%sx the previous window)",
			next[argStart], formatNumber(g.expansionFactor)),
	}, true
}

// relaxPattern keeps the most specific word of a multi-word pattern.
func relaxPattern(args map[string]any) (Strategy, bool) {
	pattern, ok := args[argPattern].(string)
	if !ok {
		return Strategy{}, false
	}
	tokens := strings.FieldsFunc(pattern, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-'
	})
	if len(tokens) < 2 {
		return Strategy{}, false
	}
	longest := tokens[0]
	for _, tok := range tokens[1:] {
		if len(tok) > len(longest) {
			longest = tok
		}
	}
	next := maps.Clone(args)
	next[argPattern] = longest
	return Strategy{
		ToolName:    toolSearchLogs,
		Arguments:   next,
		Description: fmt.Sprintf("relax the search pattern from %q to %q", pattern, longest),
	}, true
}

func dropArgument(toolName string, args map[string]any, key, description string) (Strategy, bool) {
	if v, ok := args[key]; !ok || v == nil || v == "" {
		return Strategy{}, false
	}
	next := maps.Clone(args)
	delete(next, key)
	return Strategy{ToolName: toolName, Arguments: next, Description: description}, true
}

func dedupeStrategies(in []Strategy) []Strategy {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		sig := s.Signature()
		if _, ok := seen[sig]; ok {
			continue
		}
		seen[sig] = struct{}{}
		out = append(out, s)
	}
	return out
}

func numberArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
