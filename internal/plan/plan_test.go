package plan

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sheetsight/sheetsight/internal/ai"
	"github.com/sheetsight/sheetsight/internal/ingest"
)

type fakeRuntime struct {
	lastReq ai.GenerateRequest
	reply   string
	err     error
}

func (f *fakeRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &ai.GenerateResponse{
		Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: f.reply}}},
	}, nil
}

func salesSheet() *ingest.Dataset {
	return &ingest.Dataset{
		Name:    "Sheet1",
		Columns: []string{"region", "sales"},
		Rows: [][]string{
			{"north", "100"}, {"south", "250"}, {"east", "310"},
		},
	}
}

func TestStripFence(t *testing.T) {
	cases := []struct{ in, want string }{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  ```json\n{}\n```  ", "{}"},
	}
	for _, c := range cases {
		if got := StripFence(c.in); got != c.want {
			t.Errorf("StripFence(%q) = %q, want %q", c.in, got, c.want)
		}
		if got := StripFence(StripFence(c.in)); got != c.want {
			t.Errorf("StripFence not idempotent on %q: %q", c.in, got)
		}
	}
}

func TestParseChartSpecsPreservesOrder(t *testing.T) {
	raw := `{
		"chart2": {"plot": "plt.bar(df[\"region\"], df[\"sales\"])", "description": "Sales by region."},
		"chart1": {"plot": "plt.hist(df[\"sales\"])", "description": "Distribution of sales."}
	}`
	specs, err := ParseChartSpecs(raw)
	if err != nil {
		t.Fatalf("ParseChartSpecs: %v", err)
	}
	var keys []string
	for pair := specs.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	if len(keys) != 2 || keys[0] != "chart2" || keys[1] != "chart1" {
		t.Errorf("key order = %v, want source order", keys)
	}
	spec, ok := specs.Get("chart1")
	if !ok || !strings.Contains(spec.Plot, "hist") {
		t.Errorf("chart1 = %+v", spec)
	}
}

func TestParseChartSpecsRejectsTruncated(t *testing.T) {
	_, err := ParseChartSpecs(`{"chart1": {"plot": "plt.plot(df[\"a\"`)
	if err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}

func TestParseChartSpecsRejectsUnknownField(t *testing.T) {
	_, err := ParseChartSpecs(`{"chart1": {"plot": "plt.plot(df[\"a\"])", "description": "x", "color": "red"}}`)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseChartSpecsRejectsMissingFields(t *testing.T) {
	if _, err := ParseChartSpecs(`{"chart1": {"plot": "", "description": "x"}}`); err == nil {
		t.Error("expected error for empty plot")
	}
	if _, err := ParseChartSpecs(`{"chart1": {"plot": "plt.plot(df[\"a\"])", "description": ""}}`); err == nil {
		t.Error("expected error for empty description")
	}
}

func TestParseChartSpecsEmptyObjectValid(t *testing.T) {
	specs, err := ParseChartSpecs(`{}`)
	if err != nil {
		t.Fatalf("ParseChartSpecs: %v", err)
	}
	if specs.Len() != 0 {
		t.Errorf("len = %d, want 0", specs.Len())
	}
}

func TestPlanSendsDeterministicRequest(t *testing.T) {
	rt := &fakeRuntime{reply: "```json\n{\"chart1\": {\"plot\": \"plt.bar(df[\\\"region\\\"], df[\\\"sales\\\"])\", \"description\": \"Sales by region.\"}}\n```"}
	p := NewPlanner(rt, "openai/gpt-4o")
	specs, err := p.Plan(context.Background(), salesSheet(), "Sales differ by region.")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if specs.Len() != 1 {
		t.Errorf("specs = %d", specs.Len())
	}
	if rt.lastReq.Temperature != 0 {
		t.Errorf("temperature = %f, want 0", rt.lastReq.Temperature)
	}
	user := rt.lastReq.Messages[1].Content
	for _, want := range []string{"Columns: region, sales", "Insights:", "north | 100"} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
}

func TestPlanUnparseableResponse(t *testing.T) {
	rt := &fakeRuntime{reply: "Here are some charts you might like!"}
	p := NewPlanner(rt, "m")
	_, err := p.Plan(context.Background(), salesSheet(), "insights")
	var rpe *ResponseParseError
	if !errors.As(err, &rpe) {
		t.Fatalf("err = %T %v, want *ResponseParseError", err, err)
	}
	if rpe.Sheet != "Sheet1" {
		t.Errorf("sheet = %q", rpe.Sheet)
	}
}
