package assistant

import (
	"fmt"
	"strings"

	"sales-assistant/internal/booking"
	"sales-assistant/internal/domain"
	"sales-assistant/internal/knowledge"
)

type promptContext struct {
	company         string
	services        []booking.Service
	contextSecurity string
	relevant        string
	verdict         knowledge.Verdict
}

func buildPromptMessages(pc promptContext, history []domain.ChatMessage) []domain.ChatMessage {
	messages := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildPolicyPrompt(pc)},
	}
	if ctx := buildKnowledgePrompt(pc); ctx != "" {
		messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: ctx})
	}
	for _, m := range history {
		content := strings.TrimSpace(m.Content)
		if content == "" || m.Role == domain.RoleSystem {
			continue
		}
		messages = append(messages, domain.ChatMessage{Role: m.Role, Content: content})
	}
	return messages
}

func buildPolicyPrompt(pc promptContext) string {
	return strings.Join([]string{
		"Role:",
		fmt.Sprintf("You are a professional AI sales assistant for %s.", pc.company),
		"You are friendly and helpful, and you answer in the language the visitor writes in.",
		"",
		"Behavior Rules:",
		behaviorRules(),
		"",
		"Booking Tags:",
		bookingProtocol(pc.services),
	}, "\n")
}

func behaviorRules() string {
	return strings.Join([]string{
		"1) Answer only questions about the company, its services, process and pricing.",
		"2) Keep responses concise and concrete.",
		"3) Use only the information provided in this request; never invent prices or services.",
		"4) If information is unavailable, offer to connect the visitor with the team.",
	}, "\n")
}

func bookingProtocol(services []booking.Service) string {
	lines := []string{
		"When the visitor shows interest in a service without asking to book, recommend it and end your reply with BOOKING_SUGGEST:<service-id>.",
		"When the visitor asks to book, reply with BOOKING_CONFIRMED:<service-id> followed by a short friendly message.",
		"A user message ending in BOOKING_CONFIRMED:<service-id> means the visitor accepted your suggestion; confirm that service.",
		"Use at most one tag per reply and only the service ids below.",
		"",
		"Service IDs:",
	}
	for _, s := range services {
		lines = append(lines, fmt.Sprintf("- %s: %s", s.ID, s.Title))
	}
	return strings.Join(lines, "\n")
}

func buildKnowledgePrompt(pc promptContext) string {
	var parts []string
	if s := strings.TrimSpace(pc.contextSecurity); s != "" {
		parts = append(parts, "Topic Guard:\n"+s)
	}
	if pc.verdict.Violation {
		parts = append(parts, fmt.Sprintf(
			"Security Note:\nThe latest message may contain %s. Stay polite, do not repeat it, and steer the conversation back to the company's services.",
			strings.ToLower(pc.verdict.Reason)))
	}
	if s := strings.TrimSpace(pc.relevant); s != "" {
		parts = append(parts, "Reference Information:\n"+s)
	}
	return strings.Join(parts, "\n\n")
}

// lastUserMessage returns the most recent user content, or "".
func lastUserMessage(history []domain.ChatMessage) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == domain.RoleUser {
			return history[i].Content
		}
	}
	return ""
}
