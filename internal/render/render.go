package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/sheetsight/sheetsight/internal/ingest"
	"github.com/sheetsight/sheetsight/internal/plan"
)

// RenderError describes one chart that failed to render. Chart failures are
// isolated: the caller records them as warnings and keeps the rest.
type RenderError struct {
	Chart string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("chart %q failed to render: %v", e.Chart, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// RenderedChart is one successfully rendered chart image with its caption.
type RenderedChart struct {
	ID          string
	Image       []byte
	Description string
}

var showRe = regexp.MustCompile(`(?m)^\s*(?:plt|plot)\.show\s*\(\s*\)\s*;?\s*$`)

// stripShow removes display-only show() statements, which have no effect in
// offline rendering.
func stripShow(program string) string {
	out := showRe.ReplaceAllString(program, "")
	var stmts []string
	for _, stmt := range splitStatements(out) {
		if t := strings.TrimSpace(stmt); t != "" {
			stmts = append(stmts, t)
		}
	}
	return strings.Join(stmts, "\n")
}

// RenderCharts evaluates each planned chart against the dataset in plan
// order. A failing chart yields a warning and does not affect the others;
// figure state never carries over between charts.
func RenderCharts(ds *ingest.Dataset, specs *plan.ChartSpecs) ([]RenderedChart, []string) {
	var rendered []RenderedChart
	var warnings []string
	if specs == nil {
		return nil, nil
	}
	for pair := specs.Oldest(); pair != nil; pair = pair.Next() {
		id, spec := pair.Key, pair.Value
		img, err := renderOne(ds, spec.Plot)
		if err != nil {
			warnings = append(warnings, (&RenderError{Chart: id, Err: err}).Error())
			continue
		}
		rendered = append(rendered, RenderedChart{
			ID:          id,
			Image:       img,
			Description: spec.Description,
		})
	}
	return rendered, warnings
}

func renderOne(ds *ingest.Dataset, program string) ([]byte, error) {
	sess := NewSession()
	defer sess.CloseAll()

	if err := EvalProgram(ds, sess, stripShow(program)); err != nil {
		return nil, err
	}
	fig := sess.Latest()
	if fig == nil {
		return nil, fmt.Errorf("program produced no figure")
	}
	var buf bytes.Buffer
	if err := renderFigure(fig, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
