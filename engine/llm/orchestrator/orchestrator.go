package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/compozy/logscout/engine/core"
	llmadapter "github.com/compozy/logscout/engine/llm/adapter"
	"github.com/compozy/logscout/engine/llm/orchestrator/prompts"
)

// Orchestrator runs the bounded LLM/tool loop for one user turn at a time
// and applies self-direction: retry prompts after empty or not-found tool
// results, and nudges after stated-but-unexecuted intent or premature
// giving-up.
type Orchestrator struct {
	client       llmadapter.LLMClient
	registry     ToolRegistry
	cfg          Config
	systemPrompt string
	catalog      []llmadapter.ToolDefinition

	detector IntentClassifier
	analyzer ResultAnalyzer
	prompts  PromptGenerator
	executor *toolExecutor
	notifier *notifier
	metrics  *Metrics
	now      func() time.Time

	turnMu   sync.Mutex
	injectMu sync.Mutex
	injected []string
}

// Option configures an Orchestrator in New.
type Option func(*Orchestrator)

// WithIntentClassifier replaces the default pattern-based IntentDetector.
func WithIntentClassifier(c IntentClassifier) Option {
	return func(o *Orchestrator) { o.detector = c }
}

// WithResultAnalyzer replaces the default ToolResultAnalyzer.
func WithResultAnalyzer(a ResultAnalyzer) Option {
	return func(o *Orchestrator) { o.analyzer = a }
}

// WithPromptGenerator replaces the template-based RetryPromptGenerator.
func WithPromptGenerator(g PromptGenerator) Option {
	return func(o *Orchestrator) { o.prompts = g }
}

// WithMetrics records activity and registers m as a tool-call observer.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithObserver registers obs before the first turn, as AddObserver does.
func WithObserver(obs ToolCallObserver) Option {
	return func(o *Orchestrator) { o.notifier.add(obs) }
}

// WithClock sets the time source for tool-call timestamps. A nil now is ignored.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New validates cfg and builds the tool schema catalogue once. The client
// and registry are shared read-only dependencies for every turn.
func New(
	ctx context.Context,
	client llmadapter.LLMClient,
	registry ToolRegistry,
	cfg Config,
	opts ...Option,
) (*Orchestrator, error) {
	if client == nil {
		return nil, core.NewError(errors.New("llm client is required"), ErrCodeInvalidConfig, nil)
	}
	if registry == nil {
		return nil, core.NewError(errors.New("tool registry is required"), ErrCodeInvalidConfig, nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &Orchestrator{
		client:   client,
		registry: registry,
		cfg:      cfg,
		notifier: &notifier{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.detector == nil {
		o.detector = NewIntentDetector()
	}
	if o.analyzer == nil {
		o.analyzer = NewToolResultAnalyzer()
	}
	if o.prompts == nil {
		gen, err := NewRetryPromptGenerator(cfg.MaxRetryAttempts, cfg.TimeExpansionFactor)
		if err != nil {
			return nil, err
		}
		o.prompts = gen
	}
	if o.metrics != nil {
		o.notifier.add(o.metrics)
	}
	systemPrompt, err := renderSystemPrompt(cfg.SystemPrompt)
	if err != nil {
		return nil, err
	}
	o.systemPrompt = systemPrompt
	catalog, err := buildCatalog(ctx, registry)
	if err != nil {
		return nil, err
	}
	o.catalog = catalog
	o.executor = newToolExecutor(registry, cfg.MaxConcurrentTools, o.notifier, o.now)
	return o, nil
}

// Respond processes one user turn and returns the final answer. Only LLM
// collaborator failures are returned as errors (*LLMFailure); tool failures
// and iteration-limit exhaustion are reported in the TurnResult.
func (o *Orchestrator) Respond(ctx context.Context, userMessage string, history []Message) (*TurnResult, error) {
	return o.run(ctx, userMessage, history, nil)
}

// RespondStream is Respond with assistant text delivered through stream.
// Text arrives as the LLM produces it once no nudge is possible; before that
// each response is held back and only the accepted answer is delivered, in
// one chunk. A stream error while delivering held-back text is returned.
func (o *Orchestrator) RespondStream(
	ctx context.Context,
	userMessage string,
	history []Message,
	stream llmadapter.StreamFunc,
) (*TurnResult, error) {
	return o.run(ctx, userMessage, history, stream)
}

// InjectContext queues a system message for the next Respond call only.
func (o *Orchestrator) InjectContext(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	o.injectMu.Lock()
	defer o.injectMu.Unlock()
	o.injected = append(o.injected, text)
}

func (o *Orchestrator) takeInjected() []string {
	o.injectMu.Lock()
	defer o.injectMu.Unlock()
	out := o.injected
	o.injected = nil
	return out
}

// AddObserver registers obs; adding the same observer twice is a no-op.
// Observers are compared by identity, so register pointers: a value of a
// non-comparable type is accepted but every add registers it again and
// RemoveObserver cannot find it.
func (o *Orchestrator) AddObserver(obs ToolCallObserver) { o.notifier.add(obs) }

// RemoveObserver reports whether obs was registered.
func (o *Orchestrator) RemoveObserver(obs ToolCallObserver) bool { return o.notifier.remove(obs) }

// ToolDefinitions returns the catalogue sent with every LLM call.
func (o *Orchestrator) ToolDefinitions() []llmadapter.ToolDefinition {
	return slices.Clone(o.catalog)
}

func (o *Orchestrator) Config() Config { return o.cfg }

func buildCatalog(ctx context.Context, registry ToolRegistry) ([]llmadapter.ToolDefinition, error) {
	tools, err := registry.ListAll(ctx)
	if err != nil {
		return nil, core.NewError(fmt.Errorf("list tools: %w", err), ErrCodeToolDefinition, nil)
	}
	defs := make([]llmadapter.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		if t == nil {
			continue
		}
		defs = append(defs, llmadapter.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.ParameterSchema(),
		})
	}
	return defs, nil
}

type systemPromptData struct {
	Instructions string
}

func renderSystemPrompt(instructions string) (string, error) {
	tpl, err := template.New("system_prompt").ParseFS(prompts.TemplateFS, "templates/system_prompt.tmpl")
	if err != nil {
		return "", fmt.Errorf("parse system prompt: %w", err)
	}
	var buf bytes.Buffer
	data := systemPromptData{Instructions: strings.TrimSpace(instructions)}
	if err := tpl.ExecuteTemplate(&buf, "system_prompt.tmpl", data); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
