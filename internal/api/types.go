package api

import (
	"encoding/json"

	"github.com/chew-z/llm-nodes/internal/pixels"
)

// Message roles
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Content part types
const (
	PartText     = "text"
	PartImageURL = "image_url"
)

// ChatRequest is the body sent to {base_url}/chat/completions
type ChatRequest struct {
	Model    string    `json:"model"`
	Seed     uint64    `json:"seed"`
	Messages []Message `json:"messages"`
}

// Message represents a single chat message. Content is sent as a plain
// string unless Parts is set.
type Message struct {
	Role    string
	Content string
	Parts   []ContentPart
}

// ContentPart is one element of a multi-part message content
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL holds an image reference, here always a data URI
type ImageURL struct {
	URL string `json:"url"`
}

// TextPart builds a text content part
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// ImagePart builds an image_url content part
func ImagePart(url string) ContentPart {
	return ContentPart{Type: PartImageURL, ImageURL: &ImageURL{URL: url}}
}

type wireMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	var content any = m.Content
	if m.Parts != nil {
		content = m.Parts
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireMessage{Role: m.Role, Content: raw})
}

// CaptionParams are the scalar inputs of the caption node
type CaptionParams struct {
	Seed    uint64 `json:"seed"`
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
	ModelID string `json:"model_id"`
	Prompt  string `json:"prompt"`
}

// ResponseParams are the inputs of the response node
type ResponseParams struct {
	Seed         uint64 `json:"seed"`
	BaseURL      string `json:"base_url"`
	APIKey       string `json:"api_key"`
	ModelID      string `json:"model_id"`
	SystemPrompt string `json:"system_prompt"`
	UserMessage  string `json:"user_message"`
}

// CaptionRunRequest is the body of POST /nodes/XZImageToText/run.
// Images come from Image (a host tensor) followed by ImageFiles
// (base64-encoded PNG/JPEG/GIF files).
type CaptionRunRequest struct {
	CaptionParams
	Image      *pixels.Tensor `json:"image,omitempty"`
	ImageFiles []string       `json:"image_files,omitempty"`
}

// ResponseRunRequest is the body of POST /nodes/XZLlmResponse/run
type ResponseRunRequest struct {
	ResponseParams
}

// NodeInfo describes a node for /object_info
type NodeInfo struct {
	Name        string      `json:"name"`
	DisplayName string      `json:"display_name"`
	Category    string      `json:"category"`
	Inputs      []InputSpec `json:"inputs"`
	OutputName  string      `json:"output_name"`
	OutputType  string      `json:"output_type"`
}

// InputSpec describes one declared node input
type InputSpec struct {
	Name                 string `json:"name"`
	Type                 string `json:"type"`
	Default              any    `json:"default,omitempty"`
	Min                  any    `json:"min,omitempty"`
	Max                  any    `json:"max,omitempty"`
	Multiline            bool   `json:"multiline,omitempty"`
	ControlAfterGenerate bool   `json:"control_after_generate,omitempty"`
}
