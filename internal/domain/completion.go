package domain

// Completion is a raw LLM answer with its token accounting.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}
