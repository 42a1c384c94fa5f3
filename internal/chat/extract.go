package chat

import (
	"github.com/chew-z/llm-nodes/internal/api"
	"github.com/tidwall/gjson"
)

// ExtractContent pulls choices[0].message.content out of a raw completion.
// Invalid JSON and a missing or empty choices array both count as missing
// choices; a null or absent content is missing content. Non-string content
// is returned as its raw JSON text.
func ExtractContent(raw []byte) (string, error) {
	payload := string(raw)
	if !gjson.ValidBytes(raw) {
		return "", api.MissingChoices(payload)
	}

	parsed := gjson.ParseBytes(raw)
	choices := parsed.Get("choices")
	if !choices.IsArray() || len(choices.Array()) == 0 {
		return "", api.MissingChoices(payload)
	}

	content := choices.Get("0.message.content")
	if !content.Exists() || content.Type == gjson.Null {
		return "", api.MissingContent(payload)
	}
	return content.String(), nil
}
