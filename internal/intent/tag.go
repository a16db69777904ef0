// Package intent decodes the booking control tags that assistant replies may
// carry and strips them before display.
//
// Grammar:
//
//	tag       = keyword ":" serviceID
//	keyword   = "BOOKING_SUGGEST" | "BOOKING_CONFIRMED"
//	serviceID = 1*( ALPHA | DIGIT | "-" | "_" )
//
// The legacy marker "BOOKING_INTENT" (optionally followed by ":" serviceID) is
// removed by Strip but never decoded.
package intent

import (
	"regexp"
	"strings"
)

type Kind int

const (
	KindNone Kind = iota
	KindSuggest
	KindConfirmed
)

const (
	suggestKeyword   = "BOOKING_SUGGEST"
	confirmedKeyword = "BOOKING_CONFIRMED"
)

func (k Kind) String() string {
	switch k {
	case KindSuggest:
		return "suggest"
	case KindConfirmed:
		return "confirmed"
	default:
		return "none"
	}
}

var (
	tagPattern    = regexp.MustCompile(`(BOOKING_SUGGEST|BOOKING_CONFIRMED):([A-Za-z0-9_-]+)`)
	legacyPattern = regexp.MustCompile(`BOOKING_INTENT(?::[A-Za-z0-9_-]+)?`)
)

// Tag is one decoded control tag. The zero value means no tag.
type Tag struct {
	Kind      Kind
	ServiceID string
}

// String renders the tag in wire form, or "" for the zero tag.
func (t Tag) String() string {
	switch t.Kind {
	case KindSuggest:
		return suggestKeyword + ":" + t.ServiceID
	case KindConfirmed:
		return confirmedKeyword + ":" + t.ServiceID
	default:
		return ""
	}
}

// Decoded is the result of decoding one assistant reply.
type Decoded struct {
	// Tag is the first tag in the reply.
	Tag Tag
	// Count is the number of tags found; anything after the first is ignored.
	Count int
	// Text is the reply with every tag removed.
	Text string
}

// Decode extracts the first booking tag from reply and returns the display text.
func Decode(reply string) Decoded {
	matches := tagPattern.FindAllStringSubmatch(reply, -1)
	out := Decoded{Count: len(matches), Text: Strip(reply)}
	if len(matches) == 0 {
		return out
	}
	first := matches[0]
	kind := KindSuggest
	if first[1] == confirmedKeyword {
		kind = KindConfirmed
	}
	out.Tag = Tag{Kind: kind, ServiceID: first[2]}
	return out
}

// Strip removes every booking tag and legacy marker from text and trims the
// result. Strip(Strip(s)) == Strip(s).
func Strip(text string) string {
	for tagPattern.MatchString(text) || legacyPattern.MatchString(text) {
		text = tagPattern.ReplaceAllString(text, "")
		text = legacyPattern.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

var affirmatives = map[string]struct{}{
	"yes":        {},
	"ja":         {},
	"book":       {},
	"boka":       {},
	"sure":       {},
	"ok":         {},
	"absolutely": {},
	"definitely": {},
}

// IsAffirmative reports whether text, as a whole, is a short affirmative token.
func IsAffirmative(text string) bool {
	_, ok := affirmatives[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

// ConfirmFollowUp rewrites an affirmative reply to a suggestion into an
// explicit confirmation for the model. previous is the last assistant tag;
// ok is false when no rewrite applies.
func ConfirmFollowUp(userText string, previous Tag) (string, bool) {
	if previous.Kind != KindSuggest || previous.ServiceID == "" || !IsAffirmative(userText) {
		return userText, false
	}
	confirmed := Tag{Kind: KindConfirmed, ServiceID: previous.ServiceID}
	return strings.TrimSpace(userText) + " " + confirmed.String(), true
}
