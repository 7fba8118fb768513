package app

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/hyperifyio/gosite/internal/extract"
	"github.com/hyperifyio/gosite/internal/pipeline"
)

// writeReportPDF renders a one-document build report: run metadata, a table
// of pages with their final state, and the warnings and errors.
func writeReportPDF(out pipeline.Outcome, meta manifestMeta, outPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(meta.SiteName+" build report"), false)
	pdf.SetCreator("gosite "+BuildVersion, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(meta.SiteName), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	status := "complete"
	if !meta.Success {
		status = "incomplete"
	}
	for _, line := range []string{
		"Mode: " + meta.Mode,
		"Status: " + status + ", quality score " + strconv.Itoa(meta.QualityScore),
		"Model: " + meta.Model,
		"Scope: " + meta.ScopeID,
		"Generated: " + meta.GeneratedAt.UTC().Format(time.RFC3339) + " in " + meta.Duration,
	} {
		pdf.CellFormat(0, 6, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Pages", "", 1, "L", false, 0, "")
	widths := []float64{45, 65, 35, 20, 20}
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range []string{"File", "Title", "State", "Attempts", "Score"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 10)
	for _, p := range out.Pages {
		title := ""
		if out.Result.Files != nil {
			if doc, ok := out.Result.Files.Get(p.Filename); ok {
				title = extract.FromHTML(doc).Title
			}
		}
		if r := []rune(title); len(r) > 40 {
			title = string(r[:37]) + "..."
		}
		cells := []string{p.Filename, title, string(p.State), strconv.Itoa(p.Attempts), strconv.Itoa(p.Score)}
		for i, c := range cells {
			pdf.CellFormat(widths[i], 7, tr(c), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, fmt.Sprintf("%s (%d)", title, len(items)), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		for _, it := range items {
			pdf.MultiCell(0, 5, tr("- "+it), "", "L", false)
		}
	}
	section("Errors", meta.Errors)
	section("Warnings", meta.Warnings)

	return pdf.OutputFileAndClose(outPath)
}
