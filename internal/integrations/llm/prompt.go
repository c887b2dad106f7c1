package llm

import (
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"talk-bridge/internal/domain"
)

// buildMessages sends the system instruction as its own message and folds
// every other turn into one role-labeled transcript.
func buildMessages(history []domain.ChatMessage) ([]openai.ChatCompletionMessageParamUnion, error) {
	system, transcript := Transcript(history)
	if transcript == "" {
		return nil, fmt.Errorf("%w: no conversation turns to complete", ErrCompletion)
	}
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	return append(messages, openai.UserMessage(transcript)), nil
}

// Transcript splits history into the system instruction and a transcript of
// the remaining turns, one "Role: content" line each.
func Transcript(history []domain.ChatMessage) (system, transcript string) {
	var sys, lines []string
	for _, m := range history {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch m.Role {
		case domain.RoleSystem:
			sys = append(sys, content)
		case domain.RoleAssistant:
			lines = append(lines, "Assistant: "+content)
		default:
			lines = append(lines, "User: "+content)
		}
	}
	return strings.Join(sys, "\n"), strings.Join(lines, "\n")
}
