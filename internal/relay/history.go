// ABOUTME: Builds the conversation context sent upstream with each message
// ABOUTME: System prompt from the agent's instructions plus a bounded history window

package relay

import (
	"github.com/2389/agent-studio/internal/store"
	"github.com/2389/agent-studio/internal/upstream"
)

const (
	// defaultSystemPrompt is used when an agent defines no instructions.
	defaultSystemPrompt = "You are a helpful AI assistant."
	// historyWindow caps how many prior messages accompany each exchange.
	historyWindow = 10
)

// systemPrompt picks the agent's persona instructions, falling back to
// its plain instructions, then to the generic default.
func systemPrompt(agent *upstream.Agent) string {
	if agent.PersonaInstructions != "" {
		return agent.PersonaInstructions
	}
	if agent.Instructions != "" {
		return agent.Instructions
	}
	return defaultSystemPrompt
}

// BuildPrompt assembles the context for one exchange: the agent's system
// prompt, the most recent prior messages, and the current user message.
func BuildPrompt(agent *upstream.Agent, prior []*store.Message, current string) []upstream.PromptMessage {
	if len(prior) > historyWindow {
		prior = prior[len(prior)-historyWindow:]
	}

	prompt := make([]upstream.PromptMessage, 0, len(prior)+2)
	prompt = append(prompt, upstream.PromptMessage{Role: "system", Content: systemPrompt(agent)})
	for _, m := range prior {
		prompt = append(prompt, upstream.PromptMessage{Role: m.Role, Content: m.Content})
	}
	return append(prompt, upstream.PromptMessage{Role: "user", Content: current})
}
