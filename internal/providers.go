package internal

import "sort"

// Provider describes an LLM backend the agent service can be pointed at
type Provider struct {
	ID             string
	Label          string
	DefaultModel   string
	APIBaseHint    string // empty means the provider's own default is used
	RequiresAPIKey bool
}

var providers = map[string]Provider{
	"ollama": {
		ID:           "ollama",
		Label:        "Ollama (local)",
		DefaultModel: "qwen3:1.7b",
		APIBaseHint:  "http://localhost:11434",
	},
	"openai": {
		ID:             "openai",
		Label:          "OpenAI",
		DefaultModel:   "gpt-4o-mini",
		APIBaseHint:    "https://api.openai.com/v1",
		RequiresAPIKey: true,
	},
	"deepseek": {
		ID:             "deepseek",
		Label:          "DeepSeek",
		DefaultModel:   "deepseek-chat",
		APIBaseHint:    "https://api.deepseek.com",
		RequiresAPIKey: true,
	},
	"gemini": {
		ID:             "gemini",
		Label:          "Google Gemini",
		DefaultModel:   "gemini-2.0-pro-exp",
		RequiresAPIKey: true,
	},
	"qwen": {
		ID:             "qwen",
		Label:          "Qwen (DashScope)",
		DefaultModel:   "qwen-plus",
		APIBaseHint:    "https://dashscope.aliyuncs.com/compatible-mode/v1",
		RequiresAPIKey: true,
	},
}

// LookupProvider returns the provider entry for id
func LookupProvider(id string) (Provider, bool) {
	p, ok := providers[id]
	return p, ok
}

// ProviderIDs returns all provider ids, sorted
func ProviderIDs() []string {
	ids := make([]string, 0, len(providers))
	for id := range providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Providers returns all provider entries ordered by id
func Providers() []Provider {
	ids := ProviderIDs()
	out := make([]Provider, 0, len(ids))
	for _, id := range ids {
		out = append(out, providers[id])
	}
	return out
}

// ModelOrDefault fills an empty model with the provider's default
func (p Provider) ModelOrDefault(model string) string {
	if model != "" {
		return model
	}
	return p.DefaultModel
}
