package chat

import "fmt"

// StylePolicy maps a classified intent to the tone sentence interpolated into
// the system directive. New styles are additions to the table, not new
// branches in the windowing code.
type StylePolicy map[Intent]string

// DefaultStylePolicy mirrors the production persona: questions get a short
// answer, everything else gets a dry, gallows-humor warmth.
var DefaultStylePolicy = StylePolicy{
	IntentQuestion:  "Respond with brevity.",
	IntentStatement: "Respond warmly and naturally, with a touch of gallows humor.",
}

// Directive renders the leading system message for the generation call.
// The user's city is embedded when known.
func (p StylePolicy) Directive(intent Intent, city string) string {
	tone, ok := p[intent]
	if !ok {
		tone = p[IntentStatement]
	}
	if city != "" {
		return fmt.Sprintf("Act as a friendly companion for an elderly person who lives in %s. %s", city, tone)
	}
	return fmt.Sprintf("Act as a friendly companion for an elderly person. %s", tone)
}
