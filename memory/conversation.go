package memory

import (
	"github.com/SaiNageswarS/chat-boot/llm"
)

// Conversation is the ordered message history of one chat session.
// It is not safe for concurrent use; the owning session serializes access.
type Conversation struct {
	ID       string        `json:"id"`
	Messages []llm.Message `json:"messages"`
}

func NewConversation(id string) *Conversation {
	return &Conversation{ID: id}
}

func (m *Conversation) Append(msgs ...llm.Message) {
	m.Messages = append(m.Messages, msgs...)
}

func (m *Conversation) AddUserMessage(content string) {
	m.Append(llm.UserMessage(content))
}

func (m *Conversation) AddAssistantMessage(content string) {
	m.Append(llm.AssistantMessage(content))
}

// AddRoundTrip records a completed exchange. Both messages land together so
// the history never holds a user turn without its reply.
func (m *Conversation) AddRoundTrip(userText, reply string) {
	m.AddUserMessage(userText)
	m.AddAssistantMessage(reply)
}

func (m *Conversation) Clear() {
	m.Messages = nil
}

// All returns a copy of the history in insertion order.
func (m *Conversation) All() []llm.Message {
	out := make([]llm.Message, len(m.Messages))
	copy(out, m.Messages)
	return out
}

func (m *Conversation) Len() int {
	return len(m.Messages)
}
