// Package render evaluates planned plot programs against a dataset and
// renders the resulting figures to PNG images.
package render

// Figure kinds, set by the first data call drawn into a figure.
const (
	FigLine    = "line"
	FigBar     = "bar"
	FigScatter = "scatter"
	FigHist    = "hist"
	FigPie     = "pie"
)

// Series is one x/y sequence on a line or scatter figure.
type Series struct {
	X []float64
	Y []float64
}

// Figure accumulates the data and decorations of one chart.
type Figure struct {
	Kind   string
	Series []Series
	Labels []string
	Values []float64
	Bins   int
	Title  string
	XLabel string
	YLabel string
}

// Session tracks the figures created while evaluating one plot program. The
// most recently created figure receives subsequent drawing calls and is the
// one captured for rendering, matching the implicit-current-figure model the
// plot grammar assumes.
type Session struct {
	figures []*Figure
}

func NewSession() *Session { return &Session{} }

// NewFigure creates a figure and makes it current.
func (s *Session) NewFigure() *Figure {
	f := &Figure{}
	s.figures = append(s.figures, f)
	return f
}

// Current returns the figure drawing calls target, or nil when none exists.
func (s *Session) Current() *Figure {
	if len(s.figures) == 0 {
		return nil
	}
	return s.figures[len(s.figures)-1]
}

// Latest returns the figure to capture for rendering: the most recent one
// that actually received data.
func (s *Session) Latest() *Figure {
	for i := len(s.figures) - 1; i >= 0; i-- {
		if s.figures[i].Kind != "" {
			return s.figures[i]
		}
	}
	return nil
}

// Live reports how many figures the session holds.
func (s *Session) Live() int { return len(s.figures) }

// CloseAll drops every figure so state cannot leak into the next program.
func (s *Session) CloseAll() { s.figures = nil }
