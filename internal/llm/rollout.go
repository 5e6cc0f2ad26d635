package llm

import (
	"context"
	"fmt"

	"github.com/fpang/dataset-curator/internal/jsonutil"
)

// rolloutSystemPrompt drives one reasoning turn. The model either commits to
// a final answer or asks for another turn by setting final to false.
const rolloutSystemPrompt = `You generate reasoning traces for training data.
Given a conversation and your reasoning so far, continue reasoning about the
question step by step. When you are confident, give the final answer.
Answer with JSON only:
{"reasoning": "<your reasoning for this turn>", "answer": "<current best answer>", "final": true|false}`

// RolloutStep is one turn of a reasoning rollout.
type RolloutStep struct {
	Reasoning string `json:"reasoning"`
	Answer    string `json:"answer"`
	Final     bool   `json:"final"`
}

// Rollout asks the model for the next reasoning turn over the conversation
// accumulated so far.
func (c *Client) Rollout(ctx context.Context, conversation string) (RolloutStep, error) {
	raw, err := c.GenerateWithSystem(ctx, rolloutSystemPrompt, conversation)
	if err != nil {
		return RolloutStep{}, err
	}
	step, err := jsonutil.Parse[RolloutStep](raw)
	if err != nil {
		return RolloutStep{}, fmt.Errorf("unparseable rollout step: %w", err)
	}
	return step, nil
}
