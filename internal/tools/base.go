// Package tools defines the agent tool interface and the built-in tools.
package tools

import "context"

// Tool is implemented by everything the agent can invoke via function
// calling.
type Tool interface {
	// Name is the function name exposed to the model.
	Name() string

	// Description tells the model what the tool does.
	Description() string

	// Parameters is the JSON Schema for the tool's arguments.
	Parameters() map[string]any

	// Execute runs the tool. The returned string is fed back to the
	// model as the tool result.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// ToSchema converts a tool to the OpenAI function-calling schema.
func ToSchema(t Tool) map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        t.Name(),
			"description": t.Description(),
			"parameters":  t.Parameters(),
		},
	}
}
