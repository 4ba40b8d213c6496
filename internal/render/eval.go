package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sheetsight/sheetsight/internal/ingest"
)

// The evaluator accepts a closed statement grammar instead of executing
// arbitrary code. A statement is one call on the plt (or plot) namespace,
// optionally assigned to a variable; anything else is rejected.
var (
	callRe = regexp.MustCompile(`^(?:[A-Za-z_][A-Za-z0-9_]*\s*=\s*)?(?:plt|plot)\.(figure|plot|line|bar|scatter|hist|pie|title|xlabel|ylabel|show)\s*\((.*)\)$`)
	dfRe   = regexp.MustCompile(`^df\[\s*(?:"([^"]*)"|'([^']*)')\s*\]$`)
	binsRe = regexp.MustCompile(`^bins\s*=\s*(\d+)$`)
	strRe  = regexp.MustCompile(`^(?:"([^"]*)"|'([^']*)')$`)
)

type argKind int

const (
	argColumn argKind = iota
	argString
	argNumber
	argBins
)

type arg struct {
	kind argKind
	col  string
	str  string
	num  float64
	bins int
}

// EvalProgram runs a plot program against the dataset, creating figures in
// the session. Data calls draw into the current figure, creating one when
// none exists yet. Decoration calls require an existing figure.
func EvalProgram(ds *ingest.Dataset, sess *Session, program string) error {
	for _, stmt := range splitStatements(program) {
		if err := evalStatement(ds, sess, stmt); err != nil {
			return err
		}
	}
	return nil
}

// splitStatements separates a program on newlines and semicolons, honoring
// quoted strings so a title containing ';' stays intact.
func splitStatements(program string) []string {
	var out []string
	var cur strings.Builder
	var quote byte
	for i := 0; i < len(program); i++ {
		ch := program[i]
		switch {
		case quote != 0:
			cur.WriteByte(ch)
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
			cur.WriteByte(ch)
		case ch == ';' || ch == '\n':
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// splitArgs separates a call's argument list at top-level commas.
func splitArgs(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	var cur strings.Builder
	var quote byte
	depth := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			cur.WriteByte(ch)
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
			cur.WriteByte(ch)
		case ch == '[' || ch == '(':
			depth++
			cur.WriteByte(ch)
		case ch == ']' || ch == ')':
			depth--
			cur.WriteByte(ch)
		case ch == ',' && depth == 0:
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	if t := strings.TrimSpace(cur.String()); t != "" {
		out = append(out, t)
	}
	return out
}

func parseArg(raw string) (arg, error) {
	if m := dfRe.FindStringSubmatch(raw); m != nil {
		col := m[1]
		if col == "" {
			col = m[2]
		}
		return arg{kind: argColumn, col: col}, nil
	}
	if m := strRe.FindStringSubmatch(raw); m != nil {
		s := m[1]
		if s == "" {
			s = m[2]
		}
		return arg{kind: argString, str: s}, nil
	}
	if m := binsRe.FindStringSubmatch(raw); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return arg{}, fmt.Errorf("invalid bins value %q", raw)
		}
		return arg{kind: argBins, bins: n}, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return arg{kind: argNumber, num: f}, nil
	}
	return arg{}, fmt.Errorf("unsupported argument %q", raw)
}

func evalStatement(ds *ingest.Dataset, sess *Session, stmt string) error {
	m := callRe.FindStringSubmatch(stmt)
	if m == nil {
		return fmt.Errorf("unsupported statement %q", stmt)
	}
	fn, rawArgs := m[1], m[2]
	args := splitArgs(rawArgs)
	parsed := make([]arg, len(args))
	for i, a := range args {
		p, err := parseArg(a)
		if err != nil {
			return fmt.Errorf("%s: %w", fn, err)
		}
		parsed[i] = p
	}

	switch fn {
	case "figure":
		sess.NewFigure()
		return nil
	case "show":
		return nil
	case "title", "xlabel", "ylabel":
		fig := sess.Current()
		if fig == nil {
			return fmt.Errorf("%s called with no active figure", fn)
		}
		if len(parsed) != 1 || parsed[0].kind != argString {
			return fmt.Errorf("%s expects one string argument", fn)
		}
		switch fn {
		case "title":
			fig.Title = parsed[0].str
		case "xlabel":
			fig.XLabel = parsed[0].str
		case "ylabel":
			fig.YLabel = parsed[0].str
		}
		return nil
	}

	// Data calls: ensure a figure exists, then dispatch.
	fig := sess.Current()
	if fig == nil {
		fig = sess.NewFigure()
	}
	switch fn {
	case "plot", "line":
		return drawLine(ds, fig, parsed)
	case "bar":
		return drawBar(ds, fig, parsed)
	case "scatter":
		return drawScatter(ds, fig, parsed)
	case "hist":
		return drawHist(ds, fig, parsed)
	case "pie":
		return drawPie(ds, fig, parsed)
	}
	return fmt.Errorf("unsupported call %q", fn)
}

func setKind(fig *Figure, kind string) error {
	if fig.Kind == "" {
		fig.Kind = kind
		return nil
	}
	if fig.Kind != kind {
		return fmt.Errorf("cannot mix %s and %s on one figure", fig.Kind, kind)
	}
	return nil
}

func columnArg(ds *ingest.Dataset, a arg) (string, error) {
	if a.kind != argColumn {
		return "", fmt.Errorf("expected a df[...] column reference")
	}
	if !ds.HasColumn(a.col) {
		return "", fmt.Errorf("unknown column %q", a.col)
	}
	return a.col, nil
}

// numericPairs returns aligned (x, y) values, skipping rows where either
// cell fails to parse.
func numericPairs(ds *ingest.Dataset, xCol, yCol string) ([]float64, []float64, error) {
	xs, _ := ds.Column(xCol)
	ys, _ := ds.Column(yCol)
	var xv, yv []float64
	for i := range xs {
		x, okx := ingest.ParseNumber(xs[i])
		y, oky := ingest.ParseNumber(ys[i])
		if okx && oky {
			xv = append(xv, x)
			yv = append(yv, y)
		}
	}
	if len(xv) == 0 {
		return nil, nil, fmt.Errorf("no numeric rows in columns %q and %q", xCol, yCol)
	}
	return xv, yv, nil
}

// labeledValues returns aligned (label, value) pairs, skipping rows where
// the value fails to parse.
func labeledValues(ds *ingest.Dataset, labelCol, valueCol string) ([]string, []float64, error) {
	labels, _ := ds.Column(labelCol)
	values, _ := ds.Column(valueCol)
	var ls []string
	var vs []float64
	for i := range labels {
		if v, ok := ingest.ParseNumber(values[i]); ok {
			ls = append(ls, labels[i])
			vs = append(vs, v)
		}
	}
	if len(vs) == 0 {
		return nil, nil, fmt.Errorf("no numeric rows in column %q", valueCol)
	}
	return ls, vs, nil
}

func drawLine(ds *ingest.Dataset, fig *Figure, args []arg) error {
	if err := setKind(fig, FigLine); err != nil {
		return err
	}
	switch len(args) {
	case 1:
		col, err := columnArg(ds, args[0])
		if err != nil {
			return err
		}
		ys, _ := ds.NumericColumn(col)
		if len(ys) == 0 {
			return fmt.Errorf("no numeric values in column %q", col)
		}
		xs := make([]float64, len(ys))
		for i := range xs {
			xs[i] = float64(i)
		}
		fig.Series = append(fig.Series, Series{X: xs, Y: ys})
		return nil
	case 2:
		xCol, err := columnArg(ds, args[0])
		if err != nil {
			return err
		}
		yCol, err := columnArg(ds, args[1])
		if err != nil {
			return err
		}
		xs, ys, err := numericPairs(ds, xCol, yCol)
		if err != nil {
			return err
		}
		fig.Series = append(fig.Series, Series{X: xs, Y: ys})
		return nil
	default:
		return fmt.Errorf("plot expects one or two column arguments")
	}
}

func drawScatter(ds *ingest.Dataset, fig *Figure, args []arg) error {
	if err := setKind(fig, FigScatter); err != nil {
		return err
	}
	if len(args) != 2 {
		return fmt.Errorf("scatter expects two column arguments")
	}
	xCol, err := columnArg(ds, args[0])
	if err != nil {
		return err
	}
	yCol, err := columnArg(ds, args[1])
	if err != nil {
		return err
	}
	xs, ys, err := numericPairs(ds, xCol, yCol)
	if err != nil {
		return err
	}
	fig.Series = append(fig.Series, Series{X: xs, Y: ys})
	return nil
}

func drawBar(ds *ingest.Dataset, fig *Figure, args []arg) error {
	if err := setKind(fig, FigBar); err != nil {
		return err
	}
	if len(args) != 2 {
		return fmt.Errorf("bar expects label and value column arguments")
	}
	labelCol, err := columnArg(ds, args[0])
	if err != nil {
		return err
	}
	valueCol, err := columnArg(ds, args[1])
	if err != nil {
		return err
	}
	labels, values, err := labeledValues(ds, labelCol, valueCol)
	if err != nil {
		return err
	}
	fig.Labels = labels
	fig.Values = values
	return nil
}

func drawHist(ds *ingest.Dataset, fig *Figure, args []arg) error {
	if err := setKind(fig, FigHist); err != nil {
		return err
	}
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("hist expects a column argument and optional bins=N")
	}
	col, err := columnArg(ds, args[0])
	if err != nil {
		return err
	}
	values, _ := ds.NumericColumn(col)
	if len(values) == 0 {
		return fmt.Errorf("no numeric values in column %q", col)
	}
	fig.Values = values
	fig.Bins = 10
	if len(args) == 2 {
		if args[1].kind != argBins {
			return fmt.Errorf("hist second argument must be bins=N")
		}
		fig.Bins = args[1].bins
	}
	return nil
}

func drawPie(ds *ingest.Dataset, fig *Figure, args []arg) error {
	if err := setKind(fig, FigPie); err != nil {
		return err
	}
	if len(args) != 2 {
		return fmt.Errorf("pie expects value and label column arguments")
	}
	valueCol, err := columnArg(ds, args[0])
	if err != nil {
		return err
	}
	labelCol, err := columnArg(ds, args[1])
	if err != nil {
		return err
	}
	labels, values, err := labeledValues(ds, labelCol, valueCol)
	if err != nil {
		return err
	}
	fig.Labels = labels
	fig.Values = values
	return nil
}
