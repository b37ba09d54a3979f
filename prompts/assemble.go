package prompts

import (
	"strings"

	"github.com/SaiNageswarS/chat-boot/llm"
)

// AssemblePrompt orders the request payload as
// [system instruction, ...history, new user message].
// A blank system instruction is left out.
func AssemblePrompt(systemInstruction string, history []llm.Message, userText string) []llm.Message {
	payload := make([]llm.Message, 0, len(history)+2)

	if strings.TrimSpace(systemInstruction) != "" {
		payload = append(payload, llm.SystemMessage(systemInstruction))
	}

	payload = append(payload, history...)
	payload = append(payload, llm.UserMessage(userText))

	return payload
}
