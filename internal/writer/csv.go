package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/bank-statement-analyzer/internal/report"
)

// Meta is written as "#" rows above the column header.
type Meta struct {
	BatchID string
	Sources []string
}

// CSVWriter writes labeled records to CSV format.
type CSVWriter struct {
	IncludeHeader bool
}

// WriteToFile writes the report records to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, r *report.Report, meta Meta) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	return w.Write(f, r, meta)
}

// Write writes the report records in chronological order.
func (w *CSVWriter) Write(out io.Writer, r *report.Report, meta Meta) error {
	writer := csv.NewWriter(out)

	if w.IncludeHeader {
		rows := [][]string{}
		if meta.BatchID != "" {
			rows = append(rows, []string{"# Batch", meta.BatchID})
		}
		if len(meta.Sources) > 0 {
			rows = append(rows, []string{"# Sources", strings.Join(meta.Sources, ";")})
		}
		rows = append(rows,
			[]string{"# Initial Balance", formatAmount(r.InitialBalance)},
			[]string{"# Final Balance", formatAmount(r.FinalBalance)},
		)
		for _, row := range rows {
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV metadata: %w", err)
			}
		}
	}

	header := []string{"Date", "Source", "Description", "Detail", "Kind", "Amount", "RunningBalance"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, rec := range r.Records {
		row := []string{
			rec.Date.Format("02/01/2006"),
			rec.SourceID,
			rec.Description,
			rec.DetailText(),
			string(rec.Kind),
			formatAmount(rec.Amount),
			formatAmount(rec.RunningBalance),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
