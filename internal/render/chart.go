package render

import (
	"fmt"
	"io"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
)

// Rendered image dimensions. The aspect ratio matches the 5.5x4.5 inch slot
// the report reserves for each chart.
const (
	imageWidth  = 792
	imageHeight = 648
)

// renderFigure draws a figure to PNG.
func renderFigure(fig *Figure, w io.Writer) error {
	switch fig.Kind {
	case FigLine:
		return renderXY(fig, w, false)
	case FigScatter:
		return renderXY(fig, w, true)
	case FigBar:
		return renderBars(fig.Title, fig.YLabel, fig.Labels, fig.Values, w)
	case FigHist:
		labels, counts := binValues(fig.Values, fig.Bins)
		ylabel := fig.YLabel
		if ylabel == "" {
			ylabel = "count"
		}
		return renderBars(fig.Title, ylabel, labels, counts, w)
	case FigPie:
		return renderPie(fig, w)
	default:
		return fmt.Errorf("figure has no drawable data")
	}
}

func renderXY(fig *Figure, w io.Writer, dots bool) error {
	if len(fig.Series) == 0 {
		return fmt.Errorf("figure has no series")
	}
	series := make([]chart.Series, 0, len(fig.Series))
	for _, s := range fig.Series {
		cs := chart.ContinuousSeries{XValues: s.X, YValues: s.Y}
		if dots {
			cs.Style = chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    4,
			}
		}
		series = append(series, cs)
	}
	graph := chart.Chart{
		Title:  fig.Title,
		Width:  imageWidth,
		Height: imageHeight,
		XAxis:  chart.XAxis{Name: fig.XLabel},
		YAxis:  chart.YAxis{Name: fig.YLabel},
		Series: series,
	}
	return graph.Render(chart.PNG, w)
}

func renderBars(title, ylabel string, labels []string, values []float64, w io.Writer) error {
	if len(values) == 0 {
		return fmt.Errorf("figure has no bars")
	}
	bars := make([]chart.Value, len(values))
	for i, v := range values {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		bars[i] = chart.Value{Value: v, Label: label}
	}
	graph := chart.BarChart{
		Title:    title,
		Width:    imageWidth,
		Height:   imageHeight,
		BarWidth: barWidth(len(bars)),
		YAxis:    chart.YAxis{Name: ylabel},
		Bars:     bars,
	}
	return graph.Render(chart.PNG, w)
}

func barWidth(n int) int {
	if n <= 0 {
		return 40
	}
	w := (imageWidth - 100) / (2 * n)
	if w < 8 {
		return 8
	}
	if w > 80 {
		return 80
	}
	return w
}

func renderPie(fig *Figure, w io.Writer) error {
	values := make([]chart.Value, 0, len(fig.Values))
	for i, v := range fig.Values {
		if v <= 0 {
			continue
		}
		label := ""
		if i < len(fig.Labels) {
			label = fig.Labels[i]
		}
		values = append(values, chart.Value{Value: v, Label: label})
	}
	if len(values) == 0 {
		return fmt.Errorf("pie has no positive values")
	}
	graph := chart.PieChart{
		Title:  fig.Title,
		Width:  imageWidth,
		Height: imageHeight,
		Values: values,
	}
	return graph.Render(chart.PNG, w)
}

// binValues buckets values into count ranges for histogram rendering.
func binValues(values []float64, bins int) ([]string, []float64) {
	if bins <= 0 {
		bins = 10
	}
	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min == max {
		return []string{fmt.Sprintf("%.4g", min)}, []float64{float64(len(values))}
	}
	width := (max - min) / float64(bins)
	counts := make([]float64, bins)
	for _, v := range values {
		idx := int(math.Floor((v - min) / width))
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	labels := make([]string, bins)
	for i := range labels {
		lo := min + float64(i)*width
		labels[i] = fmt.Sprintf("%.4g", lo)
	}
	return labels, counts
}
