package chat

import "strings"

// Intent is the coarse classification of an inbound message, used to pick a
// response-style directive.
type Intent string

const (
	IntentQuestion  Intent = "question"
	IntentStatement Intent = "statement"
)

// questionWords is the fixed prefix set that marks a message as a question.
// Treat membership as configuration: there is no stemming or synonym handling,
// and the classifier is approximate by design of the product, not a full NLP
// component.
var questionWords = []string{"what", "when", "where", "how", "why", "who", "can", "do", "if"}

// Classify tags text as a question or a statement. Pure and deterministic:
// the trimmed, lower-cased text is a question when it starts with one of
// questionWords.
func Classify(text string) Intent {
	normalized := strings.ToLower(strings.TrimSpace(text))
	for _, w := range questionWords {
		if strings.HasPrefix(normalized, w) {
			return IntentQuestion
		}
	}
	return IntentStatement
}
