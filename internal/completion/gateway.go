// Package completion adapts the external LLM provider to the routing core.
package completion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/capitalize-ai/livechat-platform/internal/llm"
	"github.com/capitalize-ai/livechat-platform/internal/model"
	"github.com/capitalize-ai/livechat-platform/internal/persona"
	"github.com/capitalize-ai/livechat-platform/pkg/logger"
	"github.com/capitalize-ai/livechat-platform/pkg/metrics"
)

// Knowledge is the optional enrichment collaborator. Implementations return
// an empty string when nothing relevant is available; the gateway tolerates
// the collaborator being absent entirely.
type Knowledge interface {
	ContextForMessage(ctx context.Context, text string, department model.Department) (string, error)
}

// Options tunes one gateway instance.
type Options struct {
	// PromptWindow is the maximum number of history turns sent to the
	// provider. At most min(len(history), PromptWindow) turns go out.
	PromptWindow int

	// Timeout bounds each provider call. An exceeded timeout surfaces as a
	// ProviderError, the same fallback path as a hard failure.
	Timeout time.Duration

	MaxTokens   int
	Temperature float64
}

// Gateway builds department-scoped prompts and calls the completion
// provider. It never mutates conversation state; the caller owns history.
type Gateway struct {
	client    llm.Client
	registry  *persona.Registry
	knowledge Knowledge
	opts      Options
	logger    *logger.Logger
}

// NewGateway creates a gateway. client may be nil when no provider is
// configured, in which case every Complete call fails closed with
// ErrServiceUnavailable. knowledge may be nil.
func NewGateway(client llm.Client, registry *persona.Registry, knowledge Knowledge, opts Options, log *logger.Logger) *Gateway {
	if opts.PromptWindow <= 0 {
		opts.PromptWindow = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	return &Gateway{
		client:    client,
		registry:  registry,
		knowledge: knowledge,
		opts:      opts,
		logger:    log,
	}
}

// Ready reports whether a completion provider is configured. Absence of
// configuration is a first-class state, not an exception-only signal.
func (g *Gateway) Ready() bool {
	return g.client != nil
}

// Complete answers a customer message in the voice of the department's
// persona. History is windowed to the last PromptWindow turns.
func (g *Gateway) Complete(ctx context.Context, text string, department model.Department, history []model.Turn) (string, *llm.CompletionResponse, error) {
	if !g.Ready() {
		return "", nil, model.ErrServiceUnavailable
	}

	system := g.systemPrompt(ctx, text, department)

	window := history
	if len(window) > g.opts.PromptWindow {
		window = window[len(window)-g.opts.PromptWindow:]
	}

	messages := make([]llm.ChatMessage, 0, len(window)+2)
	messages = append(messages, llm.ChatMessage{Role: string(model.RoleSystem), Content: system})
	for _, turn := range window {
		messages = append(messages, llm.ChatMessage{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, llm.ChatMessage{Role: string(model.RoleUser), Content: text})

	callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Complete(callCtx, &llm.CompletionRequest{
		Messages:    messages,
		MaxTokens:   g.opts.MaxTokens,
		Temperature: g.opts.Temperature,
	})
	if err != nil {
		metrics.RecordCompletion(g.client.Name(), "error", time.Since(start).Seconds(), 0, 0)
		g.logger.Warn("completion failed", "provider", g.client.Name(), "department", department, "error", err)
		return "", nil, &model.ProviderError{Provider: g.client.Name(), Err: err}
	}

	metrics.RecordCompletion(g.client.Name(), "success", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)
	return resp.Content, resp, nil
}

// systemPrompt assembles the persona instructions plus whatever context the
// knowledge collaborator returns for this message.
func (g *Gateway) systemPrompt(ctx context.Context, text string, department model.Department) string {
	p, ok := g.registry.Get(department)
	if !ok {
		p = g.registry.MainRouter()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a %s on the %s team of a live-chat platform.\n", p.Name, p.Role, p.Department)
	if p.Style != "" {
		fmt.Fprintf(&b, "Tone: %s.\n", p.Style)
	}
	if len(p.Capabilities) > 0 {
		fmt.Fprintf(&b, "You can help with: %s.\n", strings.Join(p.Capabilities, ", "))
	}
	if p.Instructions != "" {
		b.WriteString(p.Instructions)
		b.WriteString("\n")
	}

	if g.knowledge != nil {
		snippet, err := g.knowledge.ContextForMessage(ctx, text, department)
		if err != nil {
			g.logger.Warn("knowledge lookup failed", "department", department, "error", err)
		} else if snippet != "" {
			b.WriteString("\nRelevant knowledge:\n")
			b.WriteString(snippet)
			b.WriteString("\n")
		}
	}

	return b.String()
}
