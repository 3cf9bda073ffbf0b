package assistant

import (
	"context"
	"fmt"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// compilePromptGraph renders the per-turn transcript: system prompt, the
// current session as an assistant message, then the caller's text.
func compilePromptGraph(
	ctx context.Context,
	systemPrompt string,
) (compose.Runnable[map[string]any, []*schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.AssistantMessage("Current state: {state}", nil),
		schema.UserMessage("{message}"),
	)

	graph := compose.NewGraph[map[string]any, []*schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add assistant prompt node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add assistant edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", compose.END); err != nil {
		return nil, fmt.Errorf("add assistant edge prompt->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("assistant.prompt_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile assistant prompt graph: %w", err)
	}
	return runner, nil
}
