package proxy

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// modelPrice is a model's per-1000-token price, USD, covering every model
// this proxy routes to.
type modelPrice struct {
	prefix      string
	inputPer1K  float64
	outputPer1K float64
}

var priceTable = []modelPrice{
	{prefix: "gpt-5", inputPer1K: 0.005, outputPer1K: 0.015},
	{prefix: "gpt-4o", inputPer1K: 0.0025, outputPer1K: 0.01},
	{prefix: "gpt-", inputPer1K: 0.0015, outputPer1K: 0.002},
	{prefix: "o1", inputPer1K: 0.015, outputPer1K: 0.06},
	{prefix: "claude-3-5", inputPer1K: 0.003, outputPer1K: 0.015},
	{prefix: "claude-", inputPer1K: 0.003, outputPer1K: 0.015},
	{prefix: "llama3.1-", inputPer1K: 0.0001, outputPer1K: 0.0001}, // Cerebras
	{prefix: "grok-", inputPer1K: 0.002, outputPer1K: 0.01},        // xAI
	{prefix: "vertex/", inputPer1K: 0.0025, outputPer1K: 0.01},
}

const defaultInputPer1K = 0.002
const defaultOutputPer1K = 0.006

// CalculateCost computes the USD cost of one completion from its model
// name and token counts.
func CalculateCost(model string, promptTokens, completionTokens int) float64 {
	in, out := defaultInputPer1K, defaultOutputPer1K
	for _, p := range priceTable {
		if strings.HasPrefix(model, p.prefix) {
			in, out = p.inputPer1K, p.outputPer1K
			break
		}
	}
	return float64(promptTokens)/1000.0*in + float64(completionTokens)/1000.0*out
}

// EstimateTokens counts tokens in text with tiktoken-go's cl100k_base
// encoding, used only when an upstream response omits its usage block
// (some OpenAI-compatible third parties do, e.g. certain Cerebras/xAI
// responses) so a cost can still be computed and charged.
func EstimateTokens(text string) int {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		// Conservative fallback: ~4 characters per token, the commonly
		// cited average for English text, if the encoder can't load.
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
