package lead

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`)

// Tried in order: country code, leading-zero domestic, generic digit groups.
var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\+46\s?[0-9\s-]{8,12}`),
	regexp.MustCompile(`0[0-9]{1,2}[\s-]?[0-9\s-]{6,10}`),
	regexp.MustCompile(`[0-9]{3}[\s-]?[0-9]{3}[\s-]?[0-9]{2,4}`),
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Plain substring triggers. No word boundaries: "genom" also matches inside
// longer words.
var contactTriggers = []string{
	// Swedish
	"kontakta mig", "ring mig", "mejla mig", "hör av er", "få kontakt",
	"min email", "mitt telefonnummer", "nå mig", "återkoppla", "genom",
	"boka tid", "konsultation", "träffa", "prata mer", "diskutera",
	"offert", "prisuppgift", "mer information", "vill veta mer",
	"kan du kontakta", "kontakta mig genom", "min e-post", "mitt mail",
	// English
	"contact me", "call me", "email me", "reach me", "get in touch",
	"book appointment", "book an appointment", "consultation", "pricing",
	"quote", "my email", "my phone", "my number",
}

// ExtractEmail returns the first email address in text, or "".
func ExtractEmail(text string) string {
	return emailPattern.FindString(text)
}

// ExtractPhone returns the first phone number found by the most specific
// matching pattern, with whitespace runs collapsed, or "".
func ExtractPhone(text string) string {
	for _, p := range phonePatterns {
		if m := p.FindString(text); m != "" {
			return strings.TrimSpace(whitespaceRun.ReplaceAllString(m, " "))
		}
	}
	return ""
}

// DetectContactIntent reports whether the lowercased text contains any
// contact trigger phrase.
func DetectContactIntent(text string) bool {
	lower := strings.ToLower(text)
	for _, trigger := range contactTriggers {
		if strings.Contains(lower, trigger) {
			return true
		}
	}
	return false
}
