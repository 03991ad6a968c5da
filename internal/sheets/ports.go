// Package sheets declares the spreadsheet export port for yearly reports.
package sheets

import (
	"context"

	"carteira/internal/core"
	"carteira/internal/report"
)

// YearReport is the content of one exported yearly sheet.
type YearReport struct {
	Year       int
	Months     [12]report.MonthBucket
	Totals     report.Totals
	Categories []core.CategoryAmount
}

// ReportExporter writes a yearly report and returns a reference to the written range.
type ReportExporter interface {
	ExportYear(ctx context.Context, r YearReport) (rangeRef string, err error)
}
