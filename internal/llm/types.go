package llm

// DefaultTemperature is used when ChatParams.Temperature is zero.
const DefaultTemperature = float32(0.3)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams holds parameters for chat completion requests.
type ChatParams struct {
	// Model specifies the model to use. If empty, the client's default model is used.
	Model string

	// MaxTokens specifies the maximum number of tokens to generate.
	// If 0, no limit is applied.
	MaxTokens int

	// Temperature controls the randomness of the output.
	// DefaultTemperature is used if not specified.
	Temperature float32

	// JSON requests a JSON object response where the backend supports it.
	JSON bool
}
