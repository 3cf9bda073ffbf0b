package contract

type EngineType string

const (
	EngineTypeModel EngineType = "model"
	EngineTypeFSM   EngineType = "fsm"
)

type ToolRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

type ToolResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Payload is what the model sees for a tool call: the result on success,
// otherwise an object carrying only the error text.
func (r ToolResult) Payload() any {
	if r.Error != "" {
		return map[string]string{"error": r.Error}
	}
	return r.Result
}
