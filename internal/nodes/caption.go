// Package nodes implements the caption and response nodes on top of the
// chat client.
package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chew-z/llm-nodes/internal/api"
	"github.com/chew-z/llm-nodes/internal/chat"
	"github.com/chew-z/llm-nodes/internal/pixels"
)

// Completer is the chat call the nodes depend on.
type Completer interface {
	Complete(ctx context.Context, target chat.Target, req api.ChatRequest) (string, error)
}

// Captions holds one caption per input image, in input order.
type Captions []string

// Value is a string for a single image and a []string otherwise.
func (c Captions) Value() any {
	if len(c) == 1 {
		return c[0]
	}
	return []string(c)
}

func (c Captions) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Value())
}

// Captioner runs the caption node.
type Captioner struct {
	client Completer
}

// NewCaptioner creates a caption node backed by client.
func NewCaptioner(client Completer) *Captioner {
	return &Captioner{client: client}
}

func validateCaption(p api.CaptionParams) error {
	switch {
	case p.APIKey == "":
		return api.InvalidArgument("api_key")
	case p.ModelID == "":
		return api.InvalidArgument("model_id")
	case p.Prompt == "":
		return api.InvalidArgument("prompt")
	}
	return nil
}

// Run captions each image with one request, sequentially. The first
// failure aborts the run and no captions are returned.
func (c *Captioner) Run(ctx context.Context, images []pixels.Image, p api.CaptionParams) (Captions, error) {
	if err := validateCaption(p); err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, api.InvalidArgument("image")
	}

	target := chat.Target{BaseURL: p.BaseURL, APIKey: p.APIKey}
	captions := make(Captions, 0, len(images))
	for i, img := range images {
		dataURL, err := img.DataURL()
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}

		req := api.ChatRequest{
			Model: p.ModelID,
			Seed:  p.Seed,
			Messages: []api.Message{{
				Role: api.RoleUser,
				Parts: []api.ContentPart{
					api.TextPart(p.Prompt),
					api.ImagePart(dataURL),
				},
			}},
		}

		caption, err := c.client.Complete(ctx, target, req)
		if err != nil {
			return nil, err
		}
		captions = append(captions, caption)
	}
	return captions, nil
}
