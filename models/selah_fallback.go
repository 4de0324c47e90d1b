package models

import "strings"

// fallbackRule maps message keywords to a canned gentle reply, used when
// the AI endpoint is unreachable. First match wins, ordered roughly from
// most to least specific.
type fallbackRule struct {
	keywords []string
	reply    string
}

var fallbackRules = []fallbackRule{
	{[]string{"priorit", "focus", "what first"},
		"What would make the biggest difference if you did it today?"},
	{[]string{"overwhelm", "stress", "too much"},
		"That's a lot to carry. What feels most important right now?"},
	{[]string{"goal", "align", "match"},
		"How does this connect to what you want this week or month to feel like?"},
	{[]string{"tired", "energy", "exhaust", "rebuild"},
		"Your energy is valid. Want to protect some space for rest?"},
	{[]string{"help", "stuck", "confused"},
		"What's one small step that would bring relief?"},
	{[]string{"reset", "start over", "check-in"},
		"What would you like this week to feel like?"},
}

// FallbackReply returns a gentle canned response for a message when the
// assistant endpoint is unavailable. Never pushy, always a question back.
func FallbackReply(message string) string {
	lower := strings.ToLower(message)
	for _, rule := range fallbackRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.reply
			}
		}
	}
	return "I'm here with you. What's on your mind about today?"
}
