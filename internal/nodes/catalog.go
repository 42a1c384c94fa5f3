package nodes

import (
	"math"
	"strings"

	"github.com/chew-z/llm-nodes/internal/api"
)

// Node names as registered with the host
const (
	CaptionNodeName  = "XZImageToText"
	ResponseNodeName = "XZLlmResponse"
)

// Input defaults shared by the node schemas and parameter constructors
const (
	DefaultBaseURL      = "https://api.openai.com/v1"
	DefaultModelID      = "gpt-4o-mini"
	DefaultPrompt       = "Describe the image."
	DefaultSystemPrompt = "You are a helpful assistant."
)

// MaxSeed is the largest seed the host may send.
const MaxSeed uint64 = math.MaxUint64

func seedInput() api.InputSpec {
	return api.InputSpec{
		Name:                 "seed",
		Type:                 "INT",
		Default:              0,
		Min:                  0,
		Max:                  MaxSeed,
		ControlAfterGenerate: true,
	}
}

func connectionInputs() []api.InputSpec {
	return []api.InputSpec{
		{Name: "base_url", Type: "STRING", Default: DefaultBaseURL},
		{Name: "api_key", Type: "STRING", Default: ""},
		{Name: "model_id", Type: "STRING", Default: DefaultModelID},
	}
}

// Catalog lists the nodes in registration order.
var Catalog = []api.NodeInfo{
	{
		Name:        CaptionNodeName,
		DisplayName: "XZ Image To Text",
		Category:    "XZ/AI",
		Inputs: append(append([]api.InputSpec{
			{Name: "image", Type: "IMAGE"},
			seedInput(),
		}, connectionInputs()...),
			api.InputSpec{Name: "prompt", Type: "STRING", Default: DefaultPrompt, Multiline: true},
		),
		OutputName: "caption",
		OutputType: "STRING",
	},
	{
		Name:        ResponseNodeName,
		DisplayName: "XZ LLM Response",
		Category:    "xzinfra/api",
		Inputs: append(append([]api.InputSpec{seedInput()}, connectionInputs()...),
			api.InputSpec{Name: "system_prompt", Type: "STRING", Default: DefaultSystemPrompt, Multiline: true},
			api.InputSpec{Name: "user_message", Type: "STRING", Default: "", Multiline: true},
		),
		OutputName: "response",
		OutputType: "STRING",
	},
}

// Lookup finds a node by name, case-insensitively.
func Lookup(name string) (api.NodeInfo, bool) {
	for _, n := range Catalog {
		if strings.EqualFold(n.Name, name) {
			return n, true
		}
	}
	return api.NodeInfo{}, false
}

// DisplayNames maps node names to their human-readable titles.
func DisplayNames() map[string]string {
	names := make(map[string]string, len(Catalog))
	for _, n := range Catalog {
		names[n.Name] = n.DisplayName
	}
	return names
}

// DefaultCaptionParams returns the caption node's schema defaults.
func DefaultCaptionParams() api.CaptionParams {
	return api.CaptionParams{
		BaseURL: DefaultBaseURL,
		ModelID: DefaultModelID,
		Prompt:  DefaultPrompt,
	}
}

// DefaultResponseParams returns the response node's schema defaults.
func DefaultResponseParams() api.ResponseParams {
	return api.ResponseParams{
		BaseURL:      DefaultBaseURL,
		ModelID:      DefaultModelID,
		SystemPrompt: DefaultSystemPrompt,
	}
}
