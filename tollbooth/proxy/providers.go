package proxy

import (
	"strings"

	"github.com/lifelog/core/config"
)

// Kind is one of the upstream wire formats this proxy speaks, narrowed to
// the kinds actually reachable from the registry's model table.
type Kind string

const (
	KindOpenAICompatible Kind = "openai-compatible" // OpenAI, Cerebras, xAI
	KindAnthropic        Kind = "anthropic"
	KindVertexAI         Kind = "vertex-ai"
)

// ProviderConfig resolves a model name to the upstream endpoint, auth
// material, and wire format needed to serve it.
type ProviderConfig struct {
	Name      string
	Kind      Kind
	Endpoint  string
	APIKey    string // unused when Kind == KindVertexAI
	ModelName string // the upstream-facing model identifier
}

// modelRoute is one static routing-table row.
type modelRoute struct {
	prefix    string
	name      string
	kind      Kind
	endpoint  string
	modelName string
}

// routingTable is the static model -> provider table, covering OpenAI,
// Cerebras, xAI (all OpenAI-compatible chat completions), Anthropic
// (Messages API), and Vertex AI (OpenAI-compatible chat completions
// behind OAuth2).
var routingTable = []modelRoute{
	{prefix: "gpt-", name: "openai", kind: KindOpenAICompatible, endpoint: "https://api.openai.com/v1/chat/completions"},
	{prefix: "o1", name: "openai", kind: KindOpenAICompatible, endpoint: "https://api.openai.com/v1/chat/completions"},
	{prefix: "claude-", name: "anthropic", kind: KindAnthropic, endpoint: "https://api.anthropic.com/v1/messages"},
	{prefix: "llama3.1-", name: "cerebras", kind: KindOpenAICompatible, endpoint: "https://api.cerebras.ai/v1/chat/completions"},
	{prefix: "grok-", name: "xai", kind: KindOpenAICompatible, endpoint: "https://api.x.ai/v1/chat/completions"},
	{prefix: "vertex/", name: "vertex-ai", kind: KindVertexAI, endpoint: ""}, // endpoint built per-request, project/location scoped
}

// GetProviderConfig resolves model to its upstream provider by matching
// its name against the routing table's prefixes. Returns false if no
// route names model.
func GetProviderConfig(model string, cfg config.ProxyConfig) (ProviderConfig, bool) {
	for _, r := range routingTable {
		if !strings.HasPrefix(model, r.prefix) {
			continue
		}
		pc := ProviderConfig{
			Name:      r.name,
			Kind:      r.kind,
			Endpoint:  r.endpoint,
			ModelName: strings.TrimPrefix(model, r.prefix),
		}
		if r.kind != KindVertexAI {
			pc.ModelName = model
		}
		switch r.name {
		case "openai":
			pc.APIKey = cfg.OpenAIAPIKey
		case "anthropic":
			pc.APIKey = cfg.AnthropicAPIKey
		case "cerebras":
			pc.APIKey = cfg.CerebrasAPIKey
		case "xai":
			pc.APIKey = cfg.XAIAPIKey
		}
		return pc, true
	}
	return ProviderConfig{}, false
}
