// Package insight turns a profiled dataset into a short list of business
// insights by prompting a text-generation runtime.
package insight

import (
	"context"
	"fmt"
	"strings"

	"github.com/sheetsight/sheetsight/internal/ai"
	"github.com/sheetsight/sheetsight/internal/profile"
	"github.com/sheetsight/sheetsight/internal/utils"
)

// promptTokenBudget caps the profile material included in the user prompt so
// wide datasets do not blow past the model's context window.
const promptTokenBudget = 24000

const systemPrompt = `You are a senior business data analyst. You are given a summary and
statistical profile of one spreadsheet. Identify the most significant,
decision-relevant insights in the data.

Rules:
- Produce at most 4 insights.
- Each insight must be a framing that can be visualized from the columns
  present: a trend, comparison, distribution, correlation, ranking, or
  outlier.
- Reference columns by their exact names.
- Be specific and quantitative where the profile supports it.
- Do not invent columns or values that are not in the material provided.`

// ModelInvocationError wraps a failed model call during insight synthesis.
type ModelInvocationError struct {
	Sheet string
	Err   error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("insight synthesis failed for sheet %q: %v", e.Sheet, e.Err)
}

func (e *ModelInvocationError) Unwrap() error { return e.Err }

// Synthesizer drives the insight stage for one or more sheets.
type Synthesizer struct {
	Runtime     ai.Runtime
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// NewSynthesizer applies the generation defaults used for insight prompts.
func NewSynthesizer(rt ai.Runtime, model string) *Synthesizer {
	return &Synthesizer{
		Runtime:     rt,
		Model:       model,
		MaxTokens:   4096,
		Temperature: 1.0,
		TopP:        1.0,
	}
}

// Synthesize produces the insight text for one profiled sheet. The returned
// string is the model's prose, later embedded verbatim into the chart
// planning prompt.
func (s *Synthesizer) Synthesize(ctx context.Context, sheet string, sum *profile.Summary, prof *profile.Profile) (string, error) {
	if s.Runtime == nil {
		return "", &ModelInvocationError{Sheet: sheet, Err: fmt.Errorf("no runtime configured")}
	}
	material := sum.Markdown() + "\n" + prof.Markdown()
	material = utils.TruncateToTokenLimit(material, promptTokenBudget)

	var user strings.Builder
	fmt.Fprintf(&user, "Sheet: %s\n\n", sheet)
	user.WriteString(material)
	user.WriteString("\nList the key insights.")

	resp, err := s.Runtime.Generate(ctx, ai.GenerateRequest{
		Model: s.Model,
		Messages: []ai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user.String()},
		},
		MaxTokens:   s.MaxTokens,
		Temperature: s.Temperature,
		TopP:        s.TopP,
	})
	if err != nil {
		return "", &ModelInvocationError{Sheet: sheet, Err: err}
	}
	content := strings.TrimSpace(resp.Content())
	if content == "" {
		return "", &ModelInvocationError{Sheet: sheet, Err: fmt.Errorf("model returned empty content")}
	}
	return content, nil
}
