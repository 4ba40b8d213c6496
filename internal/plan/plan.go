// Package plan asks the model to turn synthesized insights into a small set
// of chart specifications, then parses and validates the response.
package plan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/sheetsight/sheetsight/internal/ai"
	"github.com/sheetsight/sheetsight/internal/ingest"
	"github.com/sheetsight/sheetsight/internal/utils"
)

const planTokenBudget = 24000

const planSystemPrompt = `You are a data visualization planner. Given a sheet's column names,
sample rows, and a list of insights, design up to 4 charts that best
communicate those insights.

Respond with a single JSON object and nothing else. Keys are chart
identifiers chart1, chart2, ... in priority order. Each value is an object
with exactly two fields:
  "plot"        - a short plotting program (see grammar below)
  "description" - one sentence explaining what the chart shows

Plot grammar. Statements are separated by semicolons or newlines. Allowed
calls, on the plt (or plot) namespace only:
  fig = plt.figure()
  plt.plot(df["col"])            line chart
  plt.plot(df["x"], df["y"])     line chart of y against x
  plt.line(...)                  alias of plot
  plt.bar(df["labels"], df["values"])
  plt.scatter(df["x"], df["y"])
  plt.hist(df["col"])            optionally hist(df["col"], bins=20)
  plt.pie(df["values"], df["labels"])
  plt.title("...")  plt.xlabel("...")  plt.ylabel("...")
Column references use df["name"] with a column name that exists in the
sheet. Every chart must create or draw into a figure. No other functions,
imports, loops, or expressions are allowed.`

// ChartSpec is one planned chart: a plot program plus its caption.
type ChartSpec struct {
	Plot        string `json:"plot"`
	Description string `json:"description"`
}

// ChartSpecs preserves the model's priority order of chart identifiers.
type ChartSpecs = orderedmap.OrderedMap[string, ChartSpec]

// ResponseParseError indicates the model's chart plan could not be decoded.
type ResponseParseError struct {
	Sheet string
	Err   error
}

func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("chart plan for sheet %q could not be parsed: %v", e.Sheet, e.Err)
}

func (e *ResponseParseError) Unwrap() error { return e.Err }

// Planner drives the chart planning stage. Planning runs deterministic
// (temperature 0) so the same insights yield the same plan.
type Planner struct {
	Runtime   ai.Runtime
	Model     string
	MaxTokens int
}

func NewPlanner(rt ai.Runtime, model string) *Planner {
	return &Planner{Runtime: rt, Model: model, MaxTokens: 4096}
}

// Plan requests chart specifications for one sheet's insights.
func (p *Planner) Plan(ctx context.Context, ds *ingest.Dataset, insights string) (*ChartSpecs, error) {
	if p.Runtime == nil {
		return nil, fmt.Errorf("no runtime configured")
	}
	var user strings.Builder
	fmt.Fprintf(&user, "Sheet: %s\n\nColumns: %s\n\n", ds.Name, strings.Join(ds.Columns, ", "))
	user.WriteString("Sample rows:\n")
	for i, row := range ds.Rows {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&user, "  %s\n", strings.Join(row, " | "))
	}
	user.WriteString("\nInsights:\n")
	user.WriteString(utils.TruncateToTokenLimit(insights, planTokenBudget))
	user.WriteString("\n\nReturn the chart plan JSON.")

	resp, err := p.Runtime.Generate(ctx, ai.GenerateRequest{
		Model: p.Model,
		Messages: []ai.Message{
			{Role: "system", Content: planSystemPrompt},
			{Role: "user", Content: user.String()},
		},
		MaxTokens:   p.MaxTokens,
		Temperature: 0,
		TopP:        1.0,
	})
	if err != nil {
		return nil, fmt.Errorf("chart planning failed for sheet %q: %w", ds.Name, err)
	}
	specs, err := ParseChartSpecs(resp.Content())
	if err != nil {
		return nil, &ResponseParseError{Sheet: ds.Name, Err: err}
	}
	return specs, nil
}

// StripFence removes a surrounding Markdown code fence (```json ... ``` or
// ``` ... ```) when present. Applying it to already-bare JSON is a no-op.
func StripFence(s string) string {
	out := strings.TrimSpace(s)
	if !strings.HasPrefix(out, "```") {
		return out
	}
	out = strings.TrimPrefix(out, "```json")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(strings.TrimSpace(out), "```")
	return strings.TrimSpace(out)
}

// ParseChartSpecs decodes the model's chart plan. Key order is preserved,
// every value must carry exactly the plot and description fields, and both
// must be non-empty. An empty object is a valid plan with zero charts.
func ParseChartSpecs(raw string) (*ChartSpecs, error) {
	cleaned := StripFence(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("empty response")
	}
	ordered := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal([]byte(cleaned), ordered); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	specs := orderedmap.New[string, ChartSpec]()
	for pair := ordered.Oldest(); pair != nil; pair = pair.Next() {
		dec := json.NewDecoder(bytes.NewReader(pair.Value))
		dec.DisallowUnknownFields()
		var spec ChartSpec
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("chart %q: %w", pair.Key, err)
		}
		if strings.TrimSpace(spec.Plot) == "" {
			return nil, fmt.Errorf("chart %q: missing plot", pair.Key)
		}
		if strings.TrimSpace(spec.Description) == "" {
			return nil, fmt.Errorf("chart %q: missing description", pair.Key)
		}
		specs.Set(pair.Key, spec)
	}
	return specs, nil
}
