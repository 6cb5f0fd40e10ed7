package nl2sql

import "context"

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Request carries everything the generator is allowed to see: the question,
// the relation name, and its exact columns.
type Request struct {
	Question   string           `json:"question"`
	Table      string           `json:"table"`
	Dialect    string           `json:"dialect"`
	Columns    []Column         `json:"columns"`
	SampleRows []map[string]any `json:"sample_rows,omitempty"`
}

// Result is the generator's raw reply. Text is untrusted and unsanitized.
type Result struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}

// TranslatorFunc adapts a function to the Translator interface.
type TranslatorFunc func(ctx context.Context, req Request) (Result, error)

func (f TranslatorFunc) Translate(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
