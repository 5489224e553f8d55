package upstream

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// ModelClassifier runs the classification prompt through an eino chat model
// chain, e.g. the Ark model from eino-ext.
type ModelClassifier struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewModelClassifier compiles the prompt template and chatModel into a chain.
func NewModelClassifier(ctx context.Context, chatModel model.BaseChatModel) (*ModelClassifier, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	// The instruction is passed as a variable: its JSON examples contain
	// braces that FString would otherwise treat as placeholders.
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{instruction}"),
		schema.UserMessage("{text}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile classifier chain: %w", err)
	}
	return &ModelClassifier{chain: runnable}, nil
}

// Classify invokes the chain and returns the model's message content.
func (c *ModelClassifier) Classify(ctx context.Context, text string) (string, error) {
	msg, err := c.chain.Invoke(ctx, map[string]any{
		"instruction": SystemInstruction,
		"text":        text,
	})
	if err != nil {
		return "", &UpstreamError{Cause: err}
	}
	if msg == nil {
		return "", nil
	}
	return msg.Content, nil
}
