package colony

import "strings"

// Turn is one line of conversation history handed to the language model.
type Turn struct {
	Speaker SenderType `json:"speaker"`
	Text    string     `json:"text"`
}

// Intent is the classification of a user message.
type Intent string

const (
	IntentReflect    Intent = "reflect"
	IntentQuestion   Intent = "question"
	IntentBrainstorm Intent = "brainstorm"
	IntentStatus     Intent = "status"
)

// Intents lists the tags the classifier may return.
var Intents = []Intent{IntentReflect, IntentQuestion, IntentBrainstorm, IntentStatus}

// ParseIntent maps a classifier tag to an Intent, defaulting to reflect.
func ParseIntent(s string) Intent {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, in := range Intents {
		if string(in) == s {
			return in
		}
	}
	return IntentReflect
}

// Answer is a grounded factual reply.
type Answer struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
}

// Idea is one brainstorm contribution attributed to an agent.
type Idea struct {
	AgentID string `json:"agentId"`
	Idea    string `json:"idea"`
}

// AgentBrief is the roster summary sent to collaborators.
type AgentBrief struct {
	ID   string    `json:"id"`
	Role string    `json:"role"`
	Type AgentType `json:"type"`
	PAS  float64   `json:"pas"`
}

// RecentTurns returns up to n messages, oldest first. Messages are stored
// newest first. Agent and system messages are both attributed to the collective.
func RecentTurns(messages []ChatMessage, n int) []Turn {
	if n > len(messages) {
		n = len(messages)
	}
	turns := make([]Turn, 0, n)
	for i := n - 1; i >= 0; i-- {
		m := messages[i]
		speaker := SenderSystem
		if m.SenderType == SenderUser {
			speaker = SenderUser
		}
		turns = append(turns, Turn{Speaker: speaker, Text: m.Message})
	}
	return turns
}
