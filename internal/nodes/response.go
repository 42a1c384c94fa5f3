package nodes

import (
	"context"

	"github.com/chew-z/llm-nodes/internal/api"
	"github.com/chew-z/llm-nodes/internal/chat"
)

// Responder runs the response node.
type Responder struct {
	client Completer
}

// NewResponder creates a response node backed by client.
func NewResponder(client Completer) *Responder {
	return &Responder{client: client}
}

// BuildMessages puts the system prompt first, and only when it is non-empty.
func BuildMessages(systemPrompt, userMessage string) []api.Message {
	messages := make([]api.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, api.Message{Role: api.RoleSystem, Content: systemPrompt})
	}
	return append(messages, api.Message{Role: api.RoleUser, Content: userMessage})
}

// Run sends a single request and returns the response text.
func (r *Responder) Run(ctx context.Context, p api.ResponseParams) (string, error) {
	switch {
	case p.APIKey == "":
		return "", api.InvalidArgument("api_key")
	case p.ModelID == "":
		return "", api.InvalidArgument("model_id")
	case p.UserMessage == "":
		return "", api.InvalidArgument("user_message")
	}

	req := api.ChatRequest{
		Model:    p.ModelID,
		Seed:     p.Seed,
		Messages: BuildMessages(p.SystemPrompt, p.UserMessage),
	}
	return r.client.Complete(ctx, chat.Target{BaseURL: p.BaseURL, APIKey: p.APIKey}, req)
}
