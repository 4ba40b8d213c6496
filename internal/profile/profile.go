// Package profile computes structural summaries and statistical profiles of
// tabular datasets. Analysis is a pure function of the dataset: no I/O, and
// identical input always yields identical output.
package profile

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sheetsight/sheetsight/internal/ingest"
)

// Options controls profiling behavior.
type Options struct {
	// SampleRows determines how many representative rows the summary keeps.
	SampleRows int
	// TopValues caps the per-column list of most frequent categories.
	TopValues int
	// OutlierThreshold is the robust |z| cutoff (MAD-based).
	OutlierThreshold float64
	// MaxCategories guards memory on high-cardinality columns.
	MaxCategories int
}

// DefaultOptions returns reasonable defaults for dataset profiling.
func DefaultOptions() Options {
	return Options{
		SampleRows:       5,
		TopValues:        8,
		OutlierThreshold: 3.5,
		MaxCategories:    10000,
	}
}

// Column kinds inferred by predominant parse.
const (
	KindNumeric     = "numeric"
	KindDatetime    = "datetime"
	KindCategorical = "categorical"
	KindText        = "text"
	KindUnknown     = "unknown"
)

// Summary is the shallow structural view of a dataset: counts, inferred
// types, and sample rows. Produced once per sheet and read-only afterward.
type Summary struct {
	Sheet       string
	RowCount    int
	ColumnCount int
	Columns     []ColumnSummary
	SampleRows  [][]string
}

// ColumnSummary captures per-column counts and the inferred kind.
type ColumnSummary struct {
	Name    string
	Kind    string
	NonNull int
	Missing int
	Unique  int
}

// Profile is the deeper statistical view used to ground insight generation
// without re-reading the dataset.
type Profile struct {
	Sheet        string
	Numeric      []NumericProfile
	Categorical  []CategoricalProfile
	Text         []TextProfile
	Correlations []PairCorr
}

// NumericProfile describes the distribution of one numeric column.
type NumericProfile struct {
	Name             string
	Count            int
	Min, Max         float64
	Mean, Std        float64
	Q1, Median, Q3   float64
	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64
}

// CategoricalProfile describes the cardinality shape of one categorical column.
type CategoricalProfile struct {
	Name   string
	Unique int
	Top    []CategoryCount
}

type CategoryCount struct {
	Value string
	Count int
}

// TextProfile keeps example values for free-text columns.
type TextProfile struct {
	Name     string
	Examples []string
}

// PairCorr is a Pearson correlation between two numeric columns.
type PairCorr struct {
	A, B string
	R    float64
}

// Analyze profiles a dataset and returns its summary and profile.
func Analyze(ds *ingest.Dataset, opt Options) (*Summary, *Profile) {
	if opt.SampleRows <= 0 {
		opt.SampleRows = 5
	}
	if opt.TopValues <= 0 {
		opt.TopValues = 8
	}
	if opt.OutlierThreshold <= 0 {
		opt.OutlierThreshold = 3.5
	}
	if opt.MaxCategories <= 0 {
		opt.MaxCategories = 10000
	}

	ncol := len(ds.Columns)
	type colAcc struct {
		name   string
		nonNil int
		miss   int
		// numeric stats via Welford
		n      int
		mean   float64
		m2     float64
		min    float64
		max    float64
		numCnt int
		dtCnt  int
		txtCnt int
		vals   []float64
		seen   map[string]int
		exText []string
	}
	cols := make([]*colAcc, ncol)
	for i, name := range ds.Columns {
		cols[i] = &colAcc{name: name, min: math.Inf(1), max: math.Inf(-1), seen: make(map[string]int)}
	}

	for _, row := range ds.Rows {
		for j := 0; j < ncol; j++ {
			v := ""
			if j < len(row) {
				v = strings.TrimSpace(row[j])
			}
			c := cols[j]
			if v == "" {
				c.miss++
				continue
			}
			c.nonNil++
			if len(c.seen) < opt.MaxCategories {
				c.seen[v]++
			}
			if x, ok := ingest.ParseNumber(v); ok {
				c.numCnt++
				c.n++
				if x < c.min {
					c.min = x
				}
				if x > c.max {
					c.max = x
				}
				delta := x - c.mean
				c.mean += delta / float64(c.n)
				c.m2 += delta * (x - c.mean)
				c.vals = append(c.vals, x)
				continue
			}
			if parseTimeMaybe(v) {
				c.dtCnt++
				continue
			}
			c.txtCnt++
			if len(c.exText) < 3 {
				c.exText = append(c.exText, v)
			}
		}
	}

	sum := &Summary{Sheet: ds.Name, RowCount: ds.Len(), ColumnCount: ncol}
	prof := &Profile{Sheet: ds.Name}
	var numIdx []int
	for idx, c := range cols {
		cs := ColumnSummary{Name: c.name, NonNull: c.nonNil, Missing: c.miss, Unique: len(c.seen)}
		kind := KindUnknown
		switch {
		case c.numCnt >= c.dtCnt && c.numCnt >= c.txtCnt && c.numCnt > 0:
			kind = KindNumeric
			numIdx = append(numIdx, idx)
			np := NumericProfile{
				Name:             c.name,
				Count:            c.n,
				Min:              c.min,
				Max:              c.max,
				Mean:             c.mean,
				OutlierThreshold: opt.OutlierThreshold,
			}
			if c.n > 1 {
				np.Std = math.Sqrt(c.m2 / float64(c.n-1))
			}
			sorted := make([]float64, len(c.vals))
			copy(sorted, c.vals)
			sort.Float64s(sorted)
			np.Q1 = quantile(sorted, 0.25)
			np.Median = quantile(sorted, 0.5)
			np.Q3 = quantile(sorted, 0.75)
			if len(c.vals) >= 8 {
				np.OutliersCount, np.OutliersMaxAbsZ = robustOutliers(c.vals, opt.OutlierThreshold)
			}
			prof.Numeric = append(prof.Numeric, np)
		case c.dtCnt >= c.txtCnt && c.dtCnt > 0:
			kind = KindDatetime
		case isCategorical(c.seen, c.nonNil):
			kind = KindCategorical
			prof.Categorical = append(prof.Categorical, CategoricalProfile{
				Name:   c.name,
				Unique: len(c.seen),
				Top:    topValues(c.seen, opt.TopValues),
			})
		case c.txtCnt > 0:
			kind = KindText
			prof.Text = append(prof.Text, TextProfile{Name: c.name, Examples: c.exText})
		}
		cs.Kind = kind
		sum.Columns = append(sum.Columns, cs)
	}

	// Sample rows: the first N, copied.
	n := opt.SampleRows
	if n > len(ds.Rows) {
		n = len(ds.Rows)
	}
	for i := 0; i < n; i++ {
		row := make([]string, ncol)
		copy(row, ds.Rows[i])
		sum.SampleRows = append(sum.SampleRows, row)
	}

	prof.Correlations = correlations(ds, numIdx)
	return sum, prof
}

// isCategorical treats short repeated tokens as categories: bounded
// cardinality relative to the number of values.
func isCategorical(seen map[string]int, nonNil int) bool {
	if len(seen) == 0 || nonNil == 0 {
		return false
	}
	for v := range seen {
		if len(v) > 64 {
			return false
		}
	}
	return len(seen) <= nonNil/2 || len(seen) <= 12
}

func topValues(seen map[string]int, limit int) []CategoryCount {
	tops := make([]CategoryCount, 0, len(seen))
	for k, v := range seen {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > limit {
		tops = tops[:limit]
	}
	return tops
}

func correlations(ds *ingest.Dataset, numIdx []int) []PairCorr {
	if len(numIdx) < 2 {
		return nil
	}
	// Re-walk rows pairwise so missing cells are excluded per pair.
	var out []PairCorr
	for a := 0; a < len(numIdx); a++ {
		for b := a + 1; b < len(numIdx); b++ {
			ia, ib := numIdx[a], numIdx[b]
			var n, sx, sy, sxx, syy, sxy float64
			for _, row := range ds.Rows {
				if ia >= len(row) || ib >= len(row) {
					continue
				}
				x, okx := ingest.ParseNumber(row[ia])
				y, oky := ingest.ParseNumber(row[ib])
				if !okx || !oky {
					continue
				}
				n++
				sx += x
				sy += y
				sxx += x * x
				syy += y * y
				sxy += x * y
			}
			if n < 2 {
				continue
			}
			denom := math.Sqrt((n*sxx - sx*sx) * (n*syy - sy*sy))
			if denom == 0 {
				continue
			}
			r := (n*sxy - sx*sy) / denom
			if r > 1 {
				r = 1
			} else if r < -1 {
				r = -1
			}
			if math.IsNaN(r) || math.IsInf(r, 0) {
				continue
			}
			out = append(out, PairCorr{A: ds.Columns[ia], B: ds.Columns[ib], R: r})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].R), math.Abs(out[j].R)
		if ai == aj {
			return out[i].A+out[i].B < out[j].A+out[j].B
		}
		return ai > aj
	})
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

func parseTimeMaybe(s string) bool {
	layouts := []string{
		time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
		"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
	}
	for _, l := range layouts {
		if _, err := time.Parse(l, s); err == nil {
			return true
		}
	}
	return false
}

// robustOutliers counts values whose MAD-based |z| exceeds the threshold.
func robustOutliers(vals []float64, thr float64) (count int, maxAbsZ float64) {
	median, mad := medianMAD(vals)
	if mad == 0 {
		return 0, 0
	}
	for _, v := range vals {
		z := 0.6745 * (v - median) / mad
		az := math.Abs(z)
		if az > thr {
			count++
		}
		if az > maxAbsZ {
			maxAbsZ = az
		}
	}
	return count, maxAbsZ
}

func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		d := v - median
		if d < 0 {
			d = -d
		}
		dev[i] = d
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
