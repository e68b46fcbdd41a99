// Package llm provides article summarization backed by an LLM provider.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// PlaceholderSummary is used for articles whose summary could not be
// generated, either because the abstract is missing or the provider failed.
const PlaceholderSummary = "Summary not available."

// Summarizer produces a short plain-language summary of an article abstract.
type Summarizer interface {
	// Summarize returns a summary of the given abstract. The title gives the
	// model context but is not required in the output.
	Summarize(ctx context.Context, title, abstract string) (string, error)

	// Provider returns the provider name.
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}

const summarySystemPrompt = `You are an assistant that summarizes biomedical research abstracts ` +
	`for a clinical audience. Write two to three sentences of plain prose covering the study ` +
	`question, design, and main finding. Do not use bullet points, headings, or preamble.`

// buildSummaryPrompt renders the user message for a summarization request.
func buildSummaryPrompt(title, abstract string) string {
	var b strings.Builder
	if t := strings.TrimSpace(title); t != "" {
		fmt.Fprintf(&b, "Title: %s\n\n", t)
	}
	fmt.Fprintf(&b, "Abstract:\n%s", strings.TrimSpace(abstract))
	return b.String()
}
