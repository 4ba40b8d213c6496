// Package pipeline orchestrates the four report stages: profile the uploaded
// file, synthesize insights, plan charts, then render and write one PDF per
// sheet. Stages are strict barriers: every sheet finishes a stage before any
// sheet enters the next.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sheetsight/sheetsight/internal/ai"
	"github.com/sheetsight/sheetsight/internal/ingest"
	"github.com/sheetsight/sheetsight/internal/insight"
	"github.com/sheetsight/sheetsight/internal/plan"
	"github.com/sheetsight/sheetsight/internal/profile"
	"github.com/sheetsight/sheetsight/internal/render"
	"github.com/sheetsight/sheetsight/internal/report"
)

// SheetRecord carries one sheet through the pipeline. Each stage fills in
// its own fields and never rewrites what an earlier stage produced.
type SheetRecord struct {
	Name       string
	Data       *ingest.Dataset
	Summary    *profile.Summary
	Profile    *profile.Profile
	Insights   string
	Specs      *plan.ChartSpecs
	Charts     []render.RenderedChart
	ReportFile string
	Warnings   []string
}

// State is the run-scoped view of all sheets between stages.
type State struct {
	RunID      uuid.UUID
	SourcePath string
	Sheets     []*SheetRecord
}

// Options configures a run.
type Options struct {
	// ReportsDir is where per-sheet PDFs land.
	ReportsDir string
	// Parallel bounds how many sheets run model stages concurrently.
	// Values below 2 mean sequential.
	Parallel int
	// ProfileOptions tunes the statistical profiler.
	ProfileOptions profile.Options
	// Generation overrides the default sampling parameters. Nil keeps the
	// stage defaults.
	Generation *Generation
}

// Generation carries the model sampling parameters. Temperature applies to
// insight synthesis only; chart planning always runs at temperature 0.
type Generation struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// SheetReport names one written report. File is the report's base name
// within the reports directory, not an absolute path.
type SheetReport struct {
	Sheet string
	File  string
}

// Result summarizes a finished run.
type Result struct {
	RunID      uuid.UUID
	ReportsDir string
	Reports    []SheetReport
	Warnings   []string
}

// Runner executes the pipeline with a configured model runtime.
type Runner struct {
	synth   *insight.Synthesizer
	planner *plan.Planner
	opt     Options
}

// New builds a Runner. Generation parameters beyond the model name follow
// the synthesizer and planner defaults.
func New(rt ai.Runtime, model string, opt Options) *Runner {
	if opt.ReportsDir == "" {
		opt.ReportsDir = "reports"
	}
	if opt.ProfileOptions == (profile.Options{}) {
		opt.ProfileOptions = profile.DefaultOptions()
	}
	synth := insight.NewSynthesizer(rt, model)
	planner := plan.NewPlanner(rt, model)
	if g := opt.Generation; g != nil {
		if g.MaxTokens > 0 {
			synth.MaxTokens = g.MaxTokens
			planner.MaxTokens = g.MaxTokens
		}
		synth.Temperature = g.Temperature
		if g.TopP > 0 {
			synth.TopP = g.TopP
		}
	}
	return &Runner{
		synth:   synth,
		planner: planner,
		opt:     opt,
	}
}

// Run executes all four stages for one source file. Ingestion, insight, and
// planning failures abort the whole run; chart failures become per-sheet
// warnings; a report write failure drops only that sheet from the results.
func (r *Runner) Run(ctx context.Context, path string) (*Result, error) {
	state := &State{RunID: uuid.New(), SourcePath: path}

	if err := r.stageProfile(state); err != nil {
		return nil, err
	}
	if err := r.stageInsights(ctx, state); err != nil {
		return nil, err
	}
	if err := r.stagePlans(ctx, state); err != nil {
		return nil, err
	}
	return r.stageReports(state)
}

// stageProfile ingests the file and profiles every sheet.
func (r *Runner) stageProfile(state *State) error {
	datasets, err := ingest.ReadFile(state.SourcePath)
	if err != nil {
		return err
	}
	for i := range datasets {
		ds := &datasets[i]
		sum, prof := profile.Analyze(ds, r.opt.ProfileOptions)
		state.Sheets = append(state.Sheets, &SheetRecord{
			Name:    ds.Name,
			Data:    ds,
			Summary: sum,
			Profile: prof,
		})
	}
	return nil
}

// stageInsights synthesizes insight text per sheet.
func (r *Runner) stageInsights(ctx context.Context, state *State) error {
	return r.forEachSheet(ctx, state, func(ctx context.Context, rec *SheetRecord) error {
		text, err := r.synth.Synthesize(ctx, rec.Name, rec.Summary, rec.Profile)
		if err != nil {
			return err
		}
		rec.Insights = text
		return nil
	})
}

// stagePlans turns insights into validated chart specs per sheet.
func (r *Runner) stagePlans(ctx context.Context, state *State) error {
	return r.forEachSheet(ctx, state, func(ctx context.Context, rec *SheetRecord) error {
		specs, err := r.planner.Plan(ctx, rec.Data, rec.Insights)
		if err != nil {
			return err
		}
		rec.Specs = specs
		return nil
	})
}

// stageReports renders charts and writes one PDF per sheet. Sheet order in
// the result follows source order.
func (r *Runner) stageReports(state *State) (*Result, error) {
	res := &Result{RunID: state.RunID, ReportsDir: r.opt.ReportsDir}
	for _, rec := range state.Sheets {
		charts, warnings := render.RenderCharts(rec.Data, rec.Specs)
		rec.Charts = charts
		rec.Warnings = append(rec.Warnings, warnings...)
		res.Warnings = append(res.Warnings, warnings...)

		path, err := report.WriteSheetReport(r.opt.ReportsDir, rec.Name, charts)
		if err != nil {
			msg := fmt.Sprintf("sheet %q: %v", rec.Name, err)
			rec.Warnings = append(rec.Warnings, msg)
			res.Warnings = append(res.Warnings, msg)
			continue
		}
		rec.ReportFile = filepath.Base(path)
		res.Reports = append(res.Reports, SheetReport{Sheet: rec.Name, File: rec.ReportFile})
	}
	return res, nil
}

// forEachSheet applies fn to every sheet, bounded-parallel when configured.
// The first error cancels the stage and fails the run.
func (r *Runner) forEachSheet(ctx context.Context, state *State, fn func(context.Context, *SheetRecord) error) error {
	if r.opt.Parallel < 2 || len(state.Sheets) < 2 {
		for _, rec := range state.Sheets {
			if err := fn(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opt.Parallel)
	for _, rec := range state.Sheets {
		rec := rec
		g.Go(func() error { return fn(gctx, rec) })
	}
	return g.Wait()
}
