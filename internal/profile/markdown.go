package profile

import (
	"fmt"
	"strings"
)

// Markdown renders the summary as compact prompt-ready text.
func (s *Summary) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	fmt.Fprintf(&b, "Sheet: %s\n", s.Sheet)
	fmt.Fprintf(&b, "Rows: %d\n", s.RowCount)
	fmt.Fprintf(&b, "Columns: %d\n\n", s.ColumnCount)

	b.WriteString("[SCHEMA]\n")
	for _, c := range s.Columns {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		fmt.Fprintf(&b, "- %s: %s (non-null %d, missing %.1f%%, unique %d)\n",
			safeName(c.Name), c.Kind, c.NonNull, missPct, c.Unique)
	}

	if len(s.SampleRows) > 0 {
		b.WriteString("\n[SAMPLE ROWS]\n| ")
		for i, c := range s.Columns {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(c.Name))
		}
		b.WriteString(" |\n| ")
		for i := range s.Columns {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString("---")
		}
		b.WriteString(" |\n")
		for _, row := range s.SampleRows {
			b.WriteString("| ")
			for i := range s.Columns {
				if i > 0 {
					b.WriteString(" | ")
				}
				val := ""
				if i < len(row) {
					val = row[i]
				}
				if len(val) > 80 {
					val = val[:77] + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	return b.String()
}

// Markdown renders the profile as compact prompt-ready text.
func (p *Profile) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATA PROFILE]\n")
	for _, n := range p.Numeric {
		fmt.Fprintf(&b, "- %s: numeric; min %.4g, max %.4g, mean %.4g, std %.4g; q1 %.4g, median %.4g, q3 %.4g",
			safeName(n.Name), n.Min, n.Max, n.Mean, n.Std, n.Q1, n.Median, n.Q3)
		if n.OutlierThreshold > 0 && n.OutliersCount > 0 {
			fmt.Fprintf(&b, "; outliers: %d above |z|>%.1f (max |z|≈%.2f)",
				n.OutliersCount, n.OutlierThreshold, n.OutliersMaxAbsZ)
		}
		b.WriteString("\n")
	}
	for _, c := range p.Categorical {
		fmt.Fprintf(&b, "- %s: categorical; unique %d", safeName(c.Name), c.Unique)
		if len(c.Top) > 0 {
			b.WriteString("; top: ")
			for i, kv := range c.Top {
				if i > 0 {
					b.WriteString(", ")
				}
				fmt.Fprintf(&b, "%s(%d)", safeVal(kv.Value), kv.Count)
			}
		}
		b.WriteString("\n")
	}
	for _, t := range p.Text {
		fmt.Fprintf(&b, "- %s: text; e.g., ", safeName(t.Name))
		for i, ex := range t.Examples {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeVal(ex))
		}
		b.WriteString("\n")
	}
	if len(p.Correlations) > 0 {
		b.WriteString("\n[CORRELATIONS]\n")
		for _, pc := range p.Correlations {
			fmt.Fprintf(&b, "- %s ~ %s: r=%.3f\n", pc.A, pc.B, pc.R)
		}
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/")
}
