package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sheetsight/sheetsight/internal/ingest"
	"github.com/sheetsight/sheetsight/internal/plan"
)

func salesSheet() *ingest.Dataset {
	return &ingest.Dataset{
		Name:    "Sheet1",
		Columns: []string{"region", "sales", "costs"},
		Rows: [][]string{
			{"north", "100", "60"},
			{"south", "250", "120"},
			{"east", "310", "180"},
			{"west", "90", "70"},
			{"central", "150", "110"},
		},
	}
}

func specsFrom(t *testing.T, raw string) *plan.ChartSpecs {
	t.Helper()
	specs, err := plan.ParseChartSpecs(raw)
	if err != nil {
		t.Fatalf("ParseChartSpecs: %v", err)
	}
	return specs
}

func isPNG(b []byte) bool {
	return bytes.HasPrefix(b, []byte("\x89PNG\r\n\x1a\n"))
}

func TestEvalProgramBuildsFigure(t *testing.T) {
	sess := NewSession()
	program := `fig = plt.figure()
plt.plot(df["sales"])
plt.title("Sales over rows")
plt.ylabel("sales")`
	if err := EvalProgram(salesSheet(), sess, program); err != nil {
		t.Fatalf("EvalProgram: %v", err)
	}
	fig := sess.Latest()
	if fig == nil {
		t.Fatal("no figure captured")
	}
	if fig.Kind != FigLine || len(fig.Series) != 1 {
		t.Errorf("figure = %+v", fig)
	}
	if fig.Title != "Sales over rows" || fig.YLabel != "sales" {
		t.Errorf("decorations = %q / %q", fig.Title, fig.YLabel)
	}
	if len(fig.Series[0].Y) != 5 {
		t.Errorf("series length = %d", len(fig.Series[0].Y))
	}
}

func TestEvalProgramSemicolonSeparated(t *testing.T) {
	sess := NewSession()
	if err := EvalProgram(salesSheet(), sess, `fig = plt.figure(); plt.scatter(df['sales'], df['costs']); plt.title("Costs vs sales")`); err != nil {
		t.Fatalf("EvalProgram: %v", err)
	}
	fig := sess.Latest()
	if fig == nil || fig.Kind != FigScatter {
		t.Fatalf("figure = %+v", fig)
	}
}

func TestEvalProgramAutoFigureOnDataCall(t *testing.T) {
	sess := NewSession()
	if err := EvalProgram(salesSheet(), sess, `plt.bar(df["region"], df["sales"])`); err != nil {
		t.Fatalf("EvalProgram: %v", err)
	}
	if sess.Live() != 1 {
		t.Errorf("figures = %d, want 1 auto-created", sess.Live())
	}
}

func TestEvalProgramRejectsArbitraryCode(t *testing.T) {
	bad := []string{
		`import os`,
		`__import__("os").system("rm -rf /")`,
		`plt.plot(open("/etc/passwd"))`,
		`exec("print(1)")`,
		`df["sales"].apply(lambda x: x)`,
		`plt.savefig("/tmp/x.png")`,
	}
	for _, program := range bad {
		sess := NewSession()
		if err := EvalProgram(salesSheet(), sess, program); err == nil {
			t.Errorf("program %q accepted, want rejection", program)
		}
	}
}

func TestEvalProgramUnknownColumn(t *testing.T) {
	sess := NewSession()
	err := EvalProgram(salesSheet(), sess, `plt.plot(df["profit"])`)
	if err == nil || !strings.Contains(err.Error(), "profit") {
		t.Errorf("err = %v, want unknown column", err)
	}
}

func TestEvalProgramDecorationNeedsFigure(t *testing.T) {
	sess := NewSession()
	if err := EvalProgram(salesSheet(), sess, `plt.title("orphan")`); err == nil {
		t.Error("expected error for decoration with no figure")
	}
}

func TestStripShow(t *testing.T) {
	program := "plt.figure()\nplt.plot(df[\"sales\"])\nplt.show()"
	got := stripShow(program)
	if strings.Contains(got, "show") {
		t.Errorf("show survived: %q", got)
	}
	if !strings.Contains(got, "plt.plot") {
		t.Errorf("plot statement lost: %q", got)
	}
}

func TestRenderChartsAllKinds(t *testing.T) {
	specs := specsFrom(t, `{
		"chart1": {"plot": "plt.bar(df[\"region\"], df[\"sales\"])", "description": "Sales by region."},
		"chart2": {"plot": "plt.hist(df[\"sales\"], bins=4)", "description": "Sales distribution."},
		"chart3": {"plot": "fig = plt.figure(); plt.scatter(df[\"costs\"], df[\"sales\"]); plt.xlabel(\"costs\"); plt.ylabel(\"sales\")", "description": "Sales against costs."},
		"chart4": {"plot": "plt.pie(df[\"sales\"], df[\"region\"])", "description": "Sales share by region."}
	}`)
	rendered, warnings := RenderCharts(salesSheet(), specs)
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}
	if len(rendered) != 4 {
		t.Fatalf("rendered = %d, want 4", len(rendered))
	}
	for i, rc := range rendered {
		if !isPNG(rc.Image) {
			t.Errorf("chart %s is not a PNG", rc.ID)
		}
		if rc.Description == "" {
			t.Errorf("chart %s missing description", rc.ID)
		}
		want := []string{"chart1", "chart2", "chart3", "chart4"}[i]
		if rc.ID != want {
			t.Errorf("order[%d] = %s, want %s", i, rc.ID, want)
		}
	}
}

func TestRenderChartsIsolatesFailure(t *testing.T) {
	specs := specsFrom(t, `{
		"chart1": {"plot": "plt.bar(df[\"region\"], df[\"sales\"])", "description": "ok"},
		"chart2": {"plot": "plt.plot(df[\"missing\"])", "description": "broken"},
		"chart3": {"plot": "plt.hist(df[\"costs\"])", "description": "ok too"}
	}`)
	rendered, warnings := RenderCharts(salesSheet(), specs)
	if len(rendered) != 2 {
		t.Fatalf("rendered = %d, want 2", len(rendered))
	}
	if rendered[0].ID != "chart1" || rendered[1].ID != "chart3" {
		t.Errorf("survivors = %s, %s", rendered[0].ID, rendered[1].ID)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "chart2") {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestRenderChartsNoFigure(t *testing.T) {
	specs := specsFrom(t, `{"chart1": {"plot": "fig = plt.figure()", "description": "empty"}}`)
	rendered, warnings := RenderCharts(salesSheet(), specs)
	if len(rendered) != 0 {
		t.Errorf("rendered = %d, want 0", len(rendered))
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestSessionFigureHygiene(t *testing.T) {
	sess := NewSession()
	sess.NewFigure()
	sess.NewFigure()
	if sess.Live() != 2 {
		t.Errorf("live = %d", sess.Live())
	}
	sess.CloseAll()
	if sess.Live() != 0 {
		t.Errorf("live after close = %d", sess.Live())
	}
	if sess.Latest() != nil {
		t.Error("Latest should be nil after CloseAll")
	}
}
