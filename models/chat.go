package models

// Conversation roles accepted in chat history
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is one prior exchange held by the caller and replayed on every request
type ConversationTurn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"` // opaque, echoed by clients only
}

// ChatRequest is the body accepted by the chat endpoint
type ChatRequest struct {
	Message             string             `json:"message" binding:"required"`
	DocumentID          string             `json:"documentId" binding:"required"`
	ConversationHistory []ConversationTurn `json:"conversationHistory,omitempty"`
}

// ChatResponse pairs the model answer with the raw text of every retrieved chunk,
// in retrieval order.
type ChatResponse struct {
	Response string   `json:"response"`
	Sources  []string `json:"sources"`
}
