// Package assistant turns a conversation into the next assistant reply by
// building the sales prompt and calling the configured language models.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sales-assistant/internal/booking"
	"sales-assistant/internal/domain"
	"sales-assistant/internal/intent"
	"sales-assistant/internal/knowledge"
	"sales-assistant/internal/metrics"
	"sales-assistant/pkg/logging"
)

// LLMClient is a chat-completion backend.
type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
}

// Moderator flags unsafe input.
type Moderator interface {
	Moderate(ctx context.Context, input string) (bool, error)
}

// Knowledge supplies reference documents and the keyword security check.
type Knowledge interface {
	Load(ctx context.Context) error
	RelevantContext(text string) string
	ContextSecurity() string
	CheckSecurity(text string) knowledge.Verdict
}

// Provider is one backend tried in order until a call succeeds.
type Provider struct {
	Name   string
	Model  string
	Client LLMClient
}

type Generator struct {
	providers []Provider
	knowledge Knowledge
	catalog   *booking.Catalog
	moderator Moderator
	company   string
	logger    *logging.Logger
	metrics   *metrics.Collector
	tracer    trace.Tracer
	now       func() time.Time
}

type Option func(*Generator)

// WithModerator rejects flagged messages before any model call.
func WithModerator(m Moderator) Option {
	return func(g *Generator) {
		g.moderator = m
	}
}

func WithLogger(l *logging.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(g *Generator) {
		g.metrics = m
	}
}

func WithCompanyName(name string) Option {
	return func(g *Generator) {
		if name = strings.TrimSpace(name); name != "" {
			g.company = name
		}
	}
}

func NewGenerator(providers []Provider, kb Knowledge, catalog *booking.Catalog, opts ...Option) (*Generator, error) {
	var usable []Provider
	for _, p := range providers {
		if p.Client == nil {
			continue
		}
		if strings.TrimSpace(p.Model) == "" {
			return nil, fmt.Errorf("assistant: provider %q has no model", p.Name)
		}
		usable = append(usable, p)
	}
	if len(usable) == 0 {
		return nil, errors.New("assistant: at least one provider is required")
	}
	if kb == nil {
		return nil, errors.New("assistant: knowledge must not be nil")
	}
	if catalog == nil {
		catalog = booking.DefaultCatalog()
	}
	g := &Generator{
		providers: usable,
		knowledge: kb,
		catalog:   catalog,
		company:   "Axie Studio",
		logger:    logging.Default(),
		tracer:    otel.Tracer("sales-assistant.internal.assistant"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate returns the raw reply for history, booking tags included. The
// keyword security check only annotates the prompt; moderation, when
// configured, answers flagged input with a redirect and skips the model.
func (g *Generator) Generate(ctx context.Context, history []domain.ChatMessage) (string, error) {
	ctx, span := g.tracer.Start(ctx, "assistant.generate")
	defer span.End()
	start := g.now()

	question := intent.Strip(lastUserMessage(history))
	if question == "" {
		return "", errors.New("assistant: conversation has no user message")
	}

	if g.moderated(ctx, question) {
		span.SetAttributes(attribute.Bool("assistant.moderated", true))
		g.metrics.ObserveSecurityFlag("moderation")
		return g.moderationRedirect(), nil
	}

	if err := g.knowledge.Load(ctx); err != nil {
		g.logger.Warn("knowledge unavailable; answering without reference documents", "err", err)
	}
	verdict := g.knowledge.CheckSecurity(question)
	if verdict.Violation {
		g.logger.Info("security rule matched", "reason", verdict.Reason)
		g.metrics.ObserveSecurityFlag(verdict.Reason)
	}

	messages := buildPromptMessages(promptContext{
		company:         g.company,
		services:        g.catalog.All(),
		contextSecurity: g.knowledge.ContextSecurity(),
		relevant:        g.knowledge.RelevantContext(question),
		verdict:         verdict,
	}, history)

	reply, provider, err := g.complete(ctx, messages)
	elapsed := g.now().Sub(start).Seconds()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		g.metrics.ObserveGeneration("error", elapsed)
		return "", err
	}
	span.SetAttributes(attribute.String("assistant.provider", provider))
	g.metrics.ObserveGeneration("ok", elapsed)
	return reply, nil
}

func (g *Generator) moderated(ctx context.Context, text string) bool {
	if g.moderator == nil {
		return false
	}
	flagged, err := g.moderator.Moderate(ctx, text)
	if err != nil {
		g.logger.Warn("moderation failed; continuing without it", "err", err)
		return false
	}
	return flagged
}

// complete tries each provider in order and returns the first non-empty reply.
func (g *Generator) complete(ctx context.Context, messages []domain.ChatMessage) (string, string, error) {
	var errs []error
	for i, p := range g.providers {
		reply, err := chatOnce(ctx, p, messages)
		if err != nil && retryable(err) && ctx.Err() == nil {
			g.logger.Info("retrying provider after transient failure", "provider", p.Name, "err", err)
			reply, err = chatOnce(ctx, p, messages)
		}
		if err == nil {
			if i > 0 {
				g.logger.Info("reply served by fallback provider", "provider", p.Name)
			}
			return reply, p.Name, nil
		}
		g.logger.Warn("provider failed", "provider", p.Name, "model", p.Model, "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
		if ctx.Err() != nil {
			break
		}
	}
	return "", "", fmt.Errorf("assistant: all providers failed: %w", errors.Join(errs...))
}

func chatOnce(ctx context.Context, p Provider, messages []domain.ChatMessage) (string, error) {
	reply, err := p.Client.Chat(ctx, p.Model, messages)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errors.New("empty reply")
	}
	return reply, err
}

// retryable reports whether err says another attempt on the same provider
// may succeed, as upstream status errors do for throttling and 5xx.
func retryable(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}

func (g *Generator) moderationRedirect() string {
	return fmt.Sprintf("I can only help with questions about %s and our services. What would you like to know about them?", g.company)
}
