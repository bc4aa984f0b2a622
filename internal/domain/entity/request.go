package entity

// Provider identifies an LLM back-end. Closed set: the registry and the
// alignment checker reject anything else.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderOllama    Provider = "local-ollama"
)

// Valid reports whether p is one of the known provider tags.
func (p Provider) Valid() bool {
	switch p {
	case ProviderAnthropic, ProviderOpenAI, ProviderOllama:
		return true
	}
	return false
}

// Role is a message author role. Closed set.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentBlock is one fragment of a block-form message body.
// Text carries inline text; Content carries nested tool-result payloads.
// Interceptors traverse Content recursively.
type ContentBlock struct {
	Text    string         `json:"text,omitempty"`
	Content []ContentBlock `json:"content,omitempty"`
}

// Message is a single conversation turn. Content holds string-form text;
// Blocks holds block-form content and takes precedence when non-empty.
type Message struct {
	Role    Role           `json:"role"`
	Content string         `json:"content,omitempty"`
	Blocks  []ContentBlock `json:"blocks,omitempty"`
}

// ToolDefinition describes a tool offered to the model. InputSchema is an
// opaque JSON Schema object; the pipeline never interprets its shape.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
}

// Request is the canonical request shape. Orchestrators build this and
// nothing else; provider-native shapes never cross the adapter boundary.
type Request struct {
	ID           string           `json:"id"`
	Provider     Provider         `json:"provider"`
	Model        string           `json:"model"`
	SystemPrompt string           `json:"system_prompt,omitempty"`
	Messages     []Message        `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	MaxTokens    int              `json:"max_tokens,omitempty"`
	SessionID    string           `json:"session_id,omitempty"`
}

// Clone returns a deep copy of the request. The PII masker transforms the
// copy so the caller's request value is never mutated.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	out := *r

	out.Messages = make([]Message, len(r.Messages))
	for i, m := range r.Messages {
		out.Messages[i] = m
		out.Messages[i].Blocks = cloneBlocks(m.Blocks)
	}

	if r.Tools != nil {
		out.Tools = make([]ToolDefinition, len(r.Tools))
		copy(out.Tools, r.Tools)
	}

	return &out
}

func cloneBlocks(blocks []ContentBlock) []ContentBlock {
	if blocks == nil {
		return nil
	}
	out := make([]ContentBlock, len(blocks))
	for i, b := range blocks {
		out[i] = b
		out[i].Content = cloneBlocks(b.Content)
	}
	return out
}
