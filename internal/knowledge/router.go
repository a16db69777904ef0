// Package knowledge selects static reference documents to inject into the
// assistant's prompt based on keywords in the visitor's message.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"sales-assistant/pkg/logging"
)

const (
	DocSecurity        = "security"
	DocCompanyInfo     = "company-info"
	DocServices        = "services"
	DocContextSecurity = "context-security"
)

type docSpec struct {
	name     string
	keywords []string
}

// Documents in prompt order with their trigger keywords.
var docSpecs = []docSpec{
	{DocSecurity, []string{
		"säkerhet", "regler", "policy", "riktlinjer", "moderering", "hat", "spam", "olämpligt",
		"security", "rules", "guidelines", "moderation", "inappropriate",
	}},
	{DocCompanyInfo, []string{
		"axie studio", "företag", "om oss", "mission", "vision", "värderingar", "team", "kontakt", "certifiering",
		"company", "about us", "values", "contact", "certification",
	}},
	{DocServices, []string{
		"tjänster", "service", "hemsida", "website", "app", "bokning", "booking", "onboarding", "pris", "kostnad", "utveckling",
		"price", "cost", "development",
	}},
	{DocContextSecurity, []string{
		"context", "redirect", "off-topic", "focus", "business", "axie studio", "services",
	}},
}

var specificInfoTriggers = []string{
	"axie studio", "företag", "om er", "om oss", "vem är ni", "kontakt", "adress", "telefon",
	"tjänst", "service", "pris", "kostnad", "hemsida", "website", "app", "utveckling",
	"bokning", "booking", "onboarding", "konsultation",
	"hur fungerar", "process", "leveranstid", "timeline", "betalning",
	"teknologi", "platform", "cms", "databas", "hosting", "domän",
	"company", "about you", "who are you", "address", "phone", "price", "cost",
	"how does", "delivery time", "payment", "technology", "database", "domain",
}

type violationRule struct {
	keywords []string
	reason   string
}

var violationRules = []violationRule{
	{[]string{"hat", "hatar", "idiot", "dum", "korkad", "stupid"}, "Inappropriate language detected"},
	{[]string{"spam", "reklam", "köp nu", "gratis pengar", "buy now", "free money"}, "Spam content detected"},
	{[]string{"personuppgifter", "personnummer", "lösenord", "password", "social security number"}, "Personal information sharing"},
}

// Verdict is the result of a security check.
type Verdict struct {
	Violation bool
	Reason    string
}

type document struct {
	name     string
	content  string
	keywords []string
}

// Router holds the loaded documents. Until Load succeeds every lookup returns
// an empty context.
type Router struct {
	source Source
	logger *logging.Logger

	mu     sync.RWMutex
	loaded bool
	docs   []document
}

func NewRouter(source Source, logger *logging.Logger) (*Router, error) {
	if source == nil {
		return nil, errors.New("knowledge: source must not be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Router{source: source, logger: logger}, nil
}

// Load fetches every document once. Later calls are no-ops; a failed load
// leaves the router unloaded so it can be retried.
func (r *Router) Load(ctx context.Context) error {
	r.mu.RLock()
	if r.loaded {
		r.mu.RUnlock()
		return nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return nil
	}

	docs := make([]document, len(docSpecs))
	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range docSpecs {
		g.Go(func() error {
			content, err := r.source.Document(gctx, spec.name)
			if err != nil {
				return err
			}
			docs[i] = document{name: spec.name, content: strings.TrimSpace(content), keywords: spec.keywords}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("knowledge: load documents: %w", err)
	}

	r.docs = docs
	r.loaded = true
	r.logger.Info("knowledge base loaded", "documents", len(docs))
	return nil
}

// Loaded reports whether Load has completed successfully.
func (r *Router) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// NeedsSpecificInformation reports whether text asks about the company,
// its services or its process.
func (r *Router) NeedsSpecificInformation(text string) bool {
	return containsAny(strings.ToLower(text), specificInfoTriggers)
}

// RelevantContext returns every document whose keywords appear in text, each
// under an uppercase header. With no keyword hit but a specific-information
// question it falls back to the company and services documents.
func (r *Router) RelevantContext(text string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.loaded {
		r.logger.Warn("knowledge base not loaded yet")
		return ""
	}

	lower := strings.ToLower(text)
	var b strings.Builder
	for _, doc := range r.docs {
		if containsAny(lower, doc.keywords) {
			writeSection(&b, strings.ToUpper(doc.name), doc.content)
		}
	}
	if b.Len() == 0 && r.NeedsSpecificInformation(text) {
		if doc, ok := r.find(DocCompanyInfo); ok {
			writeSection(&b, "COMPANY", doc.content)
		}
		if doc, ok := r.find(DocServices); ok {
			writeSection(&b, "SERVICES", doc.content)
		}
	}
	return strings.TrimSpace(b.String())
}

// ContextSecurity returns the topic-guard document, or "" before Load.
func (r *Router) ContextSecurity() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.loaded {
		return ""
	}
	doc, _ := r.find(DocContextSecurity)
	return doc.content
}

// CheckSecurity returns the first rule whose keywords appear in text.
func (r *Router) CheckSecurity(text string) Verdict {
	lower := strings.ToLower(text)
	for _, rule := range violationRules {
		if containsAny(lower, rule.keywords) {
			return Verdict{Violation: true, Reason: rule.reason}
		}
	}
	return Verdict{}
}

// find must be called with r.mu held.
func (r *Router) find(name string) (document, bool) {
	for _, doc := range r.docs {
		if doc.name == name {
			return doc, true
		}
	}
	return document{}, false
}

func writeSection(b *strings.Builder, header, content string) {
	b.WriteString("\n=== ")
	b.WriteString(header)
	b.WriteString(" INFORMATION ===\n")
	b.WriteString(content)
	b.WriteString("\n")
}

func containsAny(lower string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
