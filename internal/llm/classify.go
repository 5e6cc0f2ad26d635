package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/fpang/dataset-curator/internal/jsonutil"
)

// classifySystemPrompt instructs the model to pick exactly one category and
// answer as JSON so the label survives fence-wrapped or chatty responses.
const classifySystemPrompt = `You label training samples for a multimodal dataset.
Pick exactly one category from the allowed list for the conversation you are given.
Answer with JSON only: {"category": "<one allowed category>"}`

// FallbackCategory is assigned when the model fails or answers outside the
// allowed list, so every record ends up labeled.
const FallbackCategory = "other"

type categoryAnswer struct {
	Category string `json:"category"`
}

// Classify asks the model to assign one of the allowed categories to a
// conversation. Invalid or failed answers fall back to FallbackCategory;
// the error reports why, and the caller decides whether that matters.
func (c *Client) Classify(ctx context.Context, conversation string, allowed []string) (string, error) {
	var b strings.Builder
	b.WriteString("Allowed categories:\n")
	for _, cat := range allowed {
		fmt.Fprintf(&b, "- %s\n", cat)
	}
	b.WriteString("\nConversation:\n")
	b.WriteString(conversation)

	raw, err := c.GenerateWithSystem(ctx, classifySystemPrompt, b.String())
	if err != nil {
		return FallbackCategory, err
	}

	answer, err := jsonutil.Parse[categoryAnswer](raw)
	if err != nil {
		return FallbackCategory, fmt.Errorf("unparseable category answer: %w", err)
	}
	for _, cat := range allowed {
		if answer.Category == cat {
			return cat, nil
		}
	}
	return FallbackCategory, fmt.Errorf("model answered %q, not an allowed category", answer.Category)
}
