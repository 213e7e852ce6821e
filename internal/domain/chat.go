package domain

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	ChatRoleUser  ChatRole = "user"
	ChatRoleModel ChatRole = "model"
)

// GroundingSource is a web citation returned with a search-grounded answer.
type GroundingSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// ChatMessage is immutable once appended to a conversation.
type ChatMessage struct {
	Role    ChatRole          `json:"role"`
	Text    string            `json:"text"`
	Sources []GroundingSource `json:"sources,omitempty"`
}

// ChatOptions toggles the optional model behaviours for one message.
type ChatOptions struct {
	UseSearch   bool `json:"use_search"`
	UseThinking bool `json:"use_thinking"`
}
