package gateway

import (
	"context"
	"net/http"
	"net/url"
)

// Health calls GET /health
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chat sends one user turn. The request is aborted when ctx is cancelled.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var out ChatResponse
	if err := c.do(ctx, http.MethodPost, "/chat", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConvertFile asks the service to convert the file at an absolute path
func (c *Client) ConvertFile(ctx context.Context, req ConvertRequest) (*ConvertResponse, error) {
	var out ConvertResponse
	if err := c.do(ctx, http.MethodPost, "/convert-file", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfigureLLM calls POST /configure-llm
func (c *Client) ConfigureLLM(ctx context.Context, s LLMSettings) (*LLMResult, error) {
	return c.llmCall(ctx, "/configure-llm", s)
}

// ReloadAgent calls POST /reload-agent
func (c *Client) ReloadAgent(ctx context.Context, s LLMSettings) (*LLMResult, error) {
	return c.llmCall(ctx, "/reload-agent", s)
}

// TestLLM calls POST /test-llm
func (c *Client) TestLLM(ctx context.Context, s LLMSettings) (*LLMResult, error) {
	return c.llmCall(ctx, "/test-llm", s)
}

func (c *Client) llmCall(ctx context.Context, path string, s LLMSettings) (*LLMResult, error) {
	var out LLMResult
	if err := c.do(ctx, http.MethodPost, path, s, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListConversations calls GET /conversations
func (c *Client) ListConversations(ctx context.Context) (*ConversationList, error) {
	var out ConversationList
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConversation calls GET /conversations/{id}
func (c *Client) GetConversation(ctx context.Context, id string) (*ConversationHistory, error) {
	var out ConversationHistory
	if err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConversation calls DELETE /conversations/{id}
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/conversations/"+url.PathEscape(id), nil, nil)
}
