package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/sheetsight/sheetsight/internal/ai"
	"github.com/sheetsight/sheetsight/internal/insight"
	"github.com/sheetsight/sheetsight/internal/plan"
)

// scriptedRuntime answers insight prompts with prose and plan prompts with
// chart JSON, keyed on the system prompt.
type scriptedRuntime struct {
	mu       sync.Mutex
	calls    int
	reqs     []ai.GenerateRequest
	planJSON string
	fail     error
}

func (s *scriptedRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	s.mu.Lock()
	s.calls++
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	content := "1. Sales vary sharply across regions."
	if strings.Contains(req.Messages[0].Content, "visualization planner") {
		content = s.planJSON
	}
	return &ai.GenerateResponse{
		Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: content}}},
	}, nil
}

const goodPlan = `{"chart1": {"plot": "plt.bar(df[\"region\"], df[\"sales\"])", "description": "Sales by region."}}`

func writeCSV(t *testing.T, rows string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(rows), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func salesCSV(t *testing.T) string {
	return writeCSV(t, "region,sales\nnorth,100\nsouth,250\neast,310\nwest,90\n")
}

func TestRunEndToEnd(t *testing.T) {
	rt := &scriptedRuntime{planJSON: goodPlan}
	dir := t.TempDir()
	r := New(rt, "openai/gpt-4o", Options{ReportsDir: dir})

	res, err := r.Run(context.Background(), salesCSV(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Reports) != 1 {
		t.Fatalf("reports = %+v, want one", res.Reports)
	}
	rep := res.Reports[0]
	if rep.Sheet != "Sheet1" || rep.File != "Sheet1.pdf" {
		t.Errorf("report = %+v", rep)
	}
	if _, err := os.Stat(filepath.Join(res.ReportsDir, rep.File)); err != nil {
		t.Errorf("report file missing: %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v", res.Warnings)
	}
	if res.RunID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("run id not assigned")
	}
}

func TestRunIngestionFailureFatal(t *testing.T) {
	rt := &scriptedRuntime{planJSON: goodPlan}
	r := New(rt, "m", Options{ReportsDir: t.TempDir()})
	_, err := r.Run(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if rt.calls != 0 {
		t.Errorf("model called %d times before ingestion barrier", rt.calls)
	}
}

func TestRunModelFailureFatal(t *testing.T) {
	rt := &scriptedRuntime{fail: errors.New("provider down")}
	r := New(rt, "m", Options{ReportsDir: t.TempDir()})
	_, err := r.Run(context.Background(), salesCSV(t))
	var mie *insight.ModelInvocationError
	if !errors.As(err, &mie) {
		t.Fatalf("err = %T %v, want *insight.ModelInvocationError", err, err)
	}
}

func TestRunUnparseablePlanFatal(t *testing.T) {
	rt := &scriptedRuntime{planJSON: "charts coming right up!"}
	dir := t.TempDir()
	r := New(rt, "m", Options{ReportsDir: dir})
	_, err := r.Run(context.Background(), salesCSV(t))
	var rpe *plan.ResponseParseError
	if !errors.As(err, &rpe) {
		t.Fatalf("err = %T %v, want *plan.ResponseParseError", err, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("reports written despite fatal parse error: %v", entries)
	}
}

func TestRunChartFailureIsWarning(t *testing.T) {
	rt := &scriptedRuntime{planJSON: `{
		"chart1": {"plot": "plt.plot(df[\"missing\"])", "description": "broken"},
		"chart2": {"plot": "plt.bar(df[\"region\"], df[\"sales\"])", "description": "ok"}
	}`}
	dir := t.TempDir()
	r := New(rt, "m", Options{ReportsDir: dir})

	res, err := r.Run(context.Background(), salesCSV(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Reports) != 1 {
		t.Fatalf("reports = %+v", res.Reports)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "chart1") {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestRunParallelMatchesSequential(t *testing.T) {
	csv := writeCSV(t, "a,b\n1,2\n3,4\n5,6\n")
	seqRT := &scriptedRuntime{planJSON: goodPlanFor("a", "b")}
	parRT := &scriptedRuntime{planJSON: goodPlanFor("a", "b")}

	seq := New(seqRT, "m", Options{ReportsDir: t.TempDir()})
	par := New(parRT, "m", Options{ReportsDir: t.TempDir(), Parallel: 4})

	seqRes, err := seq.Run(context.Background(), csv)
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	parRes, err := par.Run(context.Background(), csv)
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	if len(seqRes.Reports) != len(parRes.Reports) {
		t.Errorf("report counts differ: %d vs %d", len(seqRes.Reports), len(parRes.Reports))
	}
	for i := range seqRes.Reports {
		if seqRes.Reports[i].Sheet != parRes.Reports[i].Sheet {
			t.Errorf("sheet order differs at %d: %s vs %s", i, seqRes.Reports[i].Sheet, parRes.Reports[i].Sheet)
		}
	}
}

func goodPlanFor(x, y string) string {
	return `{"chart1": {"plot": "plt.scatter(df[\"` + x + `\"], df[\"` + y + `\"])", "description": "y against x."}}`
}

func TestRunAppliesGenerationOverrides(t *testing.T) {
	rt := &scriptedRuntime{planJSON: goodPlan}
	r := New(rt, "m", Options{
		ReportsDir: t.TempDir(),
		Generation: &Generation{MaxTokens: 2048, Temperature: 0.25, TopP: 0.9},
	})
	if _, err := r.Run(context.Background(), salesCSV(t)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rt.reqs) != 2 {
		t.Fatalf("requests = %d, want insight+plan", len(rt.reqs))
	}
	ins := rt.reqs[0]
	if ins.MaxTokens != 2048 || ins.Temperature != 0.25 || ins.TopP != 0.9 {
		t.Errorf("insight params = %+v", ins)
	}
	pl := rt.reqs[1]
	if pl.MaxTokens != 2048 {
		t.Errorf("plan max tokens = %d", pl.MaxTokens)
	}
	if pl.Temperature != 0 {
		t.Errorf("plan temperature = %f, planning must stay deterministic", pl.Temperature)
	}
}

func TestRunWriteFailureSkipsSheetOnly(t *testing.T) {
	book := excelize.NewFile()
	if err := book.SetSheetName("Sheet1", "Good"); err != nil {
		t.Fatalf("rename sheet: %v", err)
	}
	for _, sheet := range []string{"Good", "Bad"} {
		if sheet != "Good" {
			if _, err := book.NewSheet(sheet); err != nil {
				t.Fatalf("new sheet: %v", err)
			}
		}
		rows := [][]any{{"region", "sales"}, {"north", 10}, {"south", 20}}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				t.Fatal(err)
			}
			if err := book.SetSheetRow(sheet, cell, &row); err != nil {
				t.Fatalf("set row: %v", err)
			}
		}
	}
	src := filepath.Join(t.TempDir(), "book.xlsx")
	if err := book.SaveAs(src); err != nil {
		t.Fatalf("save workbook: %v", err)
	}

	dir := t.TempDir()
	// A directory squatting on Bad's output path makes its write fail.
	if err := os.MkdirAll(filepath.Join(dir, "Bad.pdf"), 0o755); err != nil {
		t.Fatal(err)
	}

	rt := &scriptedRuntime{planJSON: goodPlan}
	r := New(rt, "m", Options{ReportsDir: dir})
	res, err := r.Run(context.Background(), src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Reports) != 1 || res.Reports[0].Sheet != "Good" {
		t.Fatalf("reports = %+v, want only Good", res.Reports)
	}
	if _, err := os.Stat(filepath.Join(dir, "Good.pdf")); err != nil {
		t.Errorf("Good report missing: %v", err)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "Bad") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want one naming the failed sheet", res.Warnings)
	}
}
