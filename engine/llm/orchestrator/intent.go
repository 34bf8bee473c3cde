package orchestrator

import (
	"regexp"
	"strings"
)

// IntentType names the action an LLM said it would take.
type IntentType string

const (
	IntentSearch       IntentType = "search"
	IntentListGroups   IntentType = "list_groups"
	IntentExpandTime   IntentType = "expand_time"
	IntentChangeFilter IntentType = "change_filter"
	IntentAnalyze      IntentType = "analyze"
	IntentNone         IntentType = "none"
)

// DetectedIntent is recomputed for every response and never stored.
type DetectedIntent struct {
	Type        IntentType
	Confidence  float64
	MatchedText string
}

func (d DetectedIntent) Actionable(threshold float64) bool {
	return d.Type != IntentNone && d.Confidence >= threshold
}

// IntentRule is one row of the ordered rule table.
type IntentRule struct {
	Pattern    *regexp.Regexp
	Intent     IntentType
	Confidence float64
}

// IntentClassifier recognizes stated-but-unexecuted actions and
// premature giving-up in LLM text.
type IntentClassifier interface {
	DetectIntent(text string) DetectedIntent
	DetectGivingUp(text string) bool
}

// actionLead matches first-person announcements of a next step.
const actionLead = `(?i)\b(?:i'll|i will|i'm going to|i am going to|i'm gonna|let me|allow me to|i need to|i should|i can now)` +
	`\s+(?:now\s+|first\s+|quickly\s+|also\s+|go ahead and\s+|try to\s+)*`

func leadRule(action string, intent IntentType, confidence float64) IntentRule {
	return IntentRule{Pattern: regexp.MustCompile(actionLead + action), Intent: intent, Confidence: confidence}
}

// DefaultIntentRules returns the built-in table. The first rule that matches
// any non-excluded sentence wins, so specific rules come before general ones.
func DefaultIntentRules() []IntentRule {
	return []IntentRule{
		leadRule(`(?:list|enumerate|discover|look up|verify|(?:check|see|find out) which)\b[^.?!]*\blog ?groups?\b`,
			IntentListGroups, 0.9),
		leadRule(`(?:list|enumerate)\b[^.?!]*\b(?:available|existing)\b[^.?!]*\bgroups?\b`, IntentListGroups, 0.9),
		leadRule(`(?:expand|widen|broaden|extend|increase|enlarge)\b[^.?!]*\b(?:time|window|range|lookback|period)\b`,
			IntentExpandTime, 0.9),
		leadRule(`(?:look|search|check|go)\b[^.?!]*\b(?:further back|a (?:longer|wider|larger|broader) (?:time )?`+
			`(?:window|range|period))`, IntentExpandTime, 0.9),
		leadRule(`(?:try|use|change|adjust|modify|relax|remove|drop|simplify|loosen)\b[^.?!]*\b`+
			`(?:filters?|patterns?|quer(?:y|ies)|search terms?|keywords?)\b`, IntentChangeFilter, 0.85),
		leadRule(`(?:search|query|grep|scan|look (?:through|for|into)|check)\b[^.?!]*\b`+
			`(?:logs?|log ?groups?|events?|entries|errors?|exceptions?)\b`, IntentSearch, 0.9),
		leadRule(`(?:fetch|retrieve|pull|get|grab|read|load|collect)\b[^.?!]*\b(?:logs?|events?|entries)\b`,
			IntentSearch, 0.85),
		{
			Pattern: regexp.MustCompile(`(?i)^\s*(?:searching|fetching|querying|retrieving|looking through|scanning)\b` +
				`[^.?!]*\b(?:logs?|groups?|events?)\b`),
			Intent:     IntentSearch,
			Confidence: 0.85,
		},
		leadRule(`(?:search|look|check|investigate|dig)\b`, IntentSearch, 0.75),
		leadRule(`(?:analy[sz]e|review|examine|summari[sz]e|inspect|correlate)\b`, IntentAnalyze, 0.65),
		{
			Pattern: regexp.MustCompile(`(?i)\b(?:you could|you might|you may want to|we could|one option is to)\s+` +
				`(?:search|fetch|check|list|look)\b`),
			Intent:     IntentSearch,
			Confidence: 0.5,
		},
	}
}

// DefaultExclusions match analysis and summary sentences, which describe
// results already obtained rather than an action still to take.
func DefaultExclusions() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:this|that|these|those|the|which)\b[^.?!]{0,40}?\b` +
			`(?:shows?|showed|indicates?|suggests?|reveals?|means|contains?|confirms?)\b`),
		regexp.MustCompile(`(?i)\bbased on\b`),
		regexp.MustCompile(`(?i)\bit (?:appears|seems|looks like)\b`),
		regexp.MustCompile(`(?i)\b(?:in summary|to summarize|in conclusion|overall)\b`),
		regexp.MustCompile(`(?i)\b(?:i|we) (?:found|searched|checked|fetched|looked|reviewed|analy[sz]ed)\b`),
		regexp.MustCompile(`(?i)\b(?:i've|i have|we've) (?:searched|checked|found|looked|reviewed|fetched)\b`),
	}
}

// DefaultGivingUpPatterns match an answer that concludes nothing is there.
func DefaultGivingUpPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bno (?:matching |relevant )?(?:logs?|log entries|entries|events|results|records|` +
			`data|errors?|matches)\b[^.?!]{0,40}?\b(?:were|was|could be|have been|has been)\s+` +
			`(?:found|returned|located|available)\b`),
		regexp.MustCompile(`(?i)\b(?:couldn't|could not|can't|cannot|was unable to|am unable to|unable to|` +
			`wasn't able to|was not able to)\s+(?:find|locate|retrieve|see)\b`),
		regexp.MustCompile(`(?i)\bthere (?:are|were|is|was) no\b[^.?!]{0,40}?\b(?:logs?|entries|events|results|` +
			`records|data|matches|errors?)\b`),
		regexp.MustCompile(`(?i)\bnothing (?:was |has been )?(?:found|returned|matched)\b`),
		regexp.MustCompile(`(?i)\bno data (?:is |was )?available\b`),
		regexp.MustCompile(`(?i)\b(?:did not|didn't) (?:find|return|turn up)\b[^.?!]{0,30}?\b(?:any|anything)\b`),
		regexp.MustCompile(`(?i)\bthe (?:search|query|results?) (?:returned|came back) (?:empty|nothing|no\b)`),
	}
}

var sentenceBoundary = regexp.MustCompile(`[.!?]+(?:\s+|$)|\n+`)

var apostrophes = strings.NewReplacer("’", "'", "‘", "'")

// IntentDetector is a stateless classifier over LLM text. Its tables can be
// replaced independently of the orchestrator.
type IntentDetector struct {
	rules      []IntentRule
	exclusions []*regexp.Regexp
	givingUp   []*regexp.Regexp
}

type IntentOption func(*IntentDetector)

func WithIntentRules(rules []IntentRule) IntentOption {
	return func(d *IntentDetector) { d.rules = rules }
}

func WithExclusions(patterns []*regexp.Regexp) IntentOption {
	return func(d *IntentDetector) { d.exclusions = patterns }
}

func WithGivingUpPatterns(patterns []*regexp.Regexp) IntentOption {
	return func(d *IntentDetector) { d.givingUp = patterns }
}

func NewIntentDetector(opts ...IntentOption) *IntentDetector {
	d := &IntentDetector{
		rules:      DefaultIntentRules(),
		exclusions: DefaultExclusions(),
		givingUp:   DefaultGivingUpPatterns(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *IntentDetector) DetectIntent(text string) DetectedIntent {
	sentences := d.candidateSentences(text)
	if len(sentences) == 0 {
		return DetectedIntent{Type: IntentNone}
	}
	for _, rule := range d.rules {
		for _, sentence := range sentences {
			if m := rule.Pattern.FindString(sentence); m != "" {
				return DetectedIntent{
					Type:        rule.Intent,
					Confidence:  rule.Confidence,
					MatchedText: strings.TrimSpace(m),
				}
			}
		}
	}
	return DetectedIntent{Type: IntentNone}
}

func (d *IntentDetector) DetectGivingUp(text string) bool {
	normalized := apostrophes.Replace(text)
	for _, p := range d.givingUp {
		if p.MatchString(normalized) {
			return true
		}
	}
	return false
}

func (d *IntentDetector) candidateSentences(text string) []string {
	normalized := apostrophes.Replace(strings.TrimSpace(text))
	if normalized == "" {
		return nil
	}
	parts := sentenceBoundary.Split(normalized, -1)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		sentence := strings.TrimSpace(part)
		if sentence == "" || d.excluded(sentence) {
			continue
		}
		out = append(out, sentence)
	}
	return out
}

func (d *IntentDetector) excluded(sentence string) bool {
	for _, p := range d.exclusions {
		if p.MatchString(sentence) {
			return true
		}
	}
	return false
}
