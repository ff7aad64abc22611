package scribe

import "context"

// GenerateOptions tunes a single text-generation call. Zero values defer to
// the provider's defaults.
type GenerateOptions struct {
	// Temperature controls randomness. nil uses the provider default,
	// pointing at 0 makes output deterministic.
	Temperature *float64

	// MaxTokens limits response length. 0 uses the provider default.
	MaxTokens int
}

// Generator is the text-generation capability consumed by the analyzer and
// writing stage. Concrete backends live in the llm package; failures should
// implement retry.RecoverableError so call sites can tell transient provider
// trouble from permanent rejection.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}
