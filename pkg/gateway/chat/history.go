package chat

import (
	"github.com/openai/openai-go"

	"github.com/prestolabs/presto/pkg/gateway/live/protocol"
)

// defaultHistoryLimit caps how many turns one session carries into the
// model context.
const defaultHistoryLimit = 20

type turn struct {
	role    string
	content string
}

// history holds the session's conversation, oldest first, dropping the
// oldest turns once the cap is reached. Only user text and final assistant
// replies are stored; tool-call intermediates live and die inside a single
// turn.
type history struct {
	limit int
	turns []turn
}

func newHistory(limit int) *history {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &history{limit: limit}
}

func (h *history) add(role, content string) {
	h.turns = append(h.turns, turn{role: role, content: content})
	if len(h.turns) > h.limit {
		h.turns = h.turns[len(h.turns)-h.limit:]
	}
}

func (h *history) clear() {
	h.turns = nil
}

func (h *history) size() int {
	return len(h.turns)
}

// messages renders the stored turns as completion message params.
func (h *history) messages() []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(h.turns))
	for _, t := range h.turns {
		if t.role == protocol.RoleAssistant {
			out = append(out, openai.AssistantMessage(t.content))
			continue
		}
		out = append(out, openai.UserMessage(t.content))
	}
	return out
}
