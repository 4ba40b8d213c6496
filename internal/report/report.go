// Package report assembles rendered charts into one PDF per sheet.
package report

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/sheetsight/sheetsight/internal/render"
	"github.com/sheetsight/sheetsight/internal/utils"
)

// A4 page geometry in points, and the layout constants for one chart page:
// the image occupies a 5.5x4.5 inch slot centered horizontally, with the
// caption flowing below it.
const (
	pageWidth   = 595.28
	pageHeight  = 841.89
	imageWidth  = 396.0
	imageHeight = 324.0
	imageTop    = 100.0
	captionX    = 50.0
	captionGap  = 40.0
	captionSize = 11.0
)

// WriteError indicates the report for one sheet could not be produced. Other
// sheets are unaffected.
type WriteError struct {
	Sheet string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("report for sheet %q could not be written: %v", e.Sheet, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// WriteSheetReport builds the PDF for one sheet and writes it atomically to
// dir. Each chart gets its own page. When no charts rendered, the report
// still exists with a single note page so every sheet yields a file. Returns
// the written path.
func WriteSheetReport(dir, sheet string, charts []render.RenderedChart) (string, error) {
	doc, err := buildDocument(sheet, charts)
	if err != nil {
		return "", &WriteError{Sheet: sheet, Err: err}
	}
	path := filepath.Join(dir, sanitizeFilename(sheet)+".pdf")
	if err := utils.SafeWriteFile(path, doc); err != nil {
		return "", &WriteError{Sheet: sheet, Err: err}
	}
	return path, nil
}

func buildDocument(sheet string, charts []render.RenderedChart) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetTitle(sheet, true)

	if len(charts) == 0 {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 14)
		pdf.SetXY(captionX, imageTop)
		pdf.MultiCell(pageWidth-2*captionX, 18, sheet, "", "L", false)
		pdf.SetFont("Helvetica", "", captionSize)
		pdf.SetXY(captionX, imageTop+40)
		pdf.MultiCell(pageWidth-2*captionX, 14, "No charts could be rendered for this sheet.", "", "L", false)
	}

	for _, c := range charts {
		pdf.AddPage()
		opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		pdf.RegisterImageOptionsReader(c.ID, opts, bytes.NewReader(c.Image))
		x := (pageWidth - imageWidth) / 2
		pdf.ImageOptions(c.ID, x, imageTop, imageWidth, imageHeight, false, opts, 0, "")

		pdf.SetFont("Helvetica", "", captionSize)
		pdf.SetXY(captionX, imageTop+imageHeight+captionGap)
		pdf.MultiCell(pageWidth-2*captionX, 14, c.Description, "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sanitizeFilename keeps sheet-derived filenames safe across platforms.
func sanitizeFilename(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if clean == "" {
		return "sheet"
	}
	return clean
}
