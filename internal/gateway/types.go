package gateway

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status           string `json:"status"`
	AgentInitialized bool   `json:"agent_initialized"`
	Version          string `json:"version,omitempty"`
}

// ChatRequest is the body of POST /chat. A nil ConversationID is sent as
// null so the service starts a new conversation.
type ChatRequest struct {
	Message        string  `json:"message"`
	ConversationID *string `json:"conversation_id"`
}

// ChatResponse is the body returned by POST /chat
type ChatResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status"`
}

// ConvertRequest is the body of POST /convert-file
type ConvertRequest struct {
	FilePath     string `json:"file_path"`
	OutputFormat string `json:"output_format"`
}

// ConvertResponse is the body returned by POST /convert-file
type ConvertResponse struct {
	Content string `json:"content"`
}

// LLMSettings is the body of the configure/reload/test LLM endpoints
type LLMSettings struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	APIKey     string `json:"api_key"`
	APIBase    string `json:"api_base"`
	HybridMode bool   `json:"hybrid_mode,omitempty"`
}

// LLMResult is returned by the configure/reload/test LLM endpoints
type LLMResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ConversationList is the body of GET /conversations
type ConversationList struct {
	Conversations []string `json:"conversations"`
	Total         int      `json:"total"`
}

// Exchange is one user/agent turn as stored by the service
type Exchange struct {
	User  string `json:"user"`
	Agent string `json:"agent"`
}

// ConversationHistory is the body of GET /conversations/{id}
type ConversationHistory struct {
	ConversationID string     `json:"conversation_id"`
	History        []Exchange `json:"history"`
}
