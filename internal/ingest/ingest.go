// Package ingest runs documents through extraction and parsing.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/insightdelivered/bank-statement-analyzer/internal/extractor"
	"github.com/insightdelivered/bank-statement-analyzer/internal/logger"
	"github.com/insightdelivered/bank-statement-analyzer/internal/models"
	"github.com/insightdelivered/bank-statement-analyzer/internal/parser"
)

// DocumentResult is the outcome for one source document. A workbook yields
// one result per sheet.
type DocumentResult struct {
	Path      string            `json:"path"`
	SourceID  string            `json:"sourceId"`
	Statement *models.Statement `json:"statement,omitempty"`
	Err       error             `json:"-"`
	Error     string            `json:"error,omitempty"`
}

// Summary makes silent drops visible in aggregate.
type Summary struct {
	DocumentsProcessed     int               `json:"documentsProcessed"`
	DocumentsFailed        int               `json:"documentsFailed"`
	TransactionsRecognized int               `json:"transactionsRecognized"`
	SpansDropped           int               `json:"spansDropped"`
	Stats                  models.ParseStats `json:"stats"`
}

// Batch is the result of one Run.
type Batch struct {
	ID        string           `json:"id"`
	Documents []DocumentResult `json:"documents"`
	Summary   Summary          `json:"summary"`
}

// Statements returns the successfully parsed statements in input order.
func (b *Batch) Statements() []models.Statement {
	var out []models.Statement
	for _, d := range b.Documents {
		if d.Statement != nil {
			out = append(out, *d.Statement)
		}
	}
	return out
}

// Ingester extracts and parses documents concurrently.
type Ingester struct {
	Parser  *parser.Parser
	Sheets  *extractor.SheetReader
	Workers int

	// ExtractText defaults to extractor.ExtractText.
	ExtractText func(path string) (string, error)
}

// Run processes every path. Documents are independent: a failed extraction is
// recorded on its result and the rest of the batch continues. The only error
// returned is a missing default year. Progress is logged to the logger carried
// by ctx.
func (in *Ingester) Run(ctx context.Context, paths []string) (*Batch, error) {
	log := logger.FromContext(ctx)
	if in.Parser == nil || in.Parser.DefaultYear <= 0 {
		return nil, parser.ErrMissingDefaultYear
	}
	workers := in.Workers
	if workers < 1 {
		workers = 1
	}

	perPath := make([][]DocumentResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				perPath[i] = []DocumentResult{failed(path, err)}
				return nil
			}
			perPath[i] = in.process(path)
			return nil
		})
	}
	_ = g.Wait()

	b := &Batch{ID: uuid.NewString()}
	for _, results := range perPath {
		b.Documents = append(b.Documents, results...)
	}
	for _, d := range b.Documents {
		if d.Statement == nil {
			b.Summary.DocumentsFailed++
			log.Warn().Str("batch", b.ID).Str("path", d.Path).Err(d.Err).Msg("document failed")
			continue
		}
		st := d.Statement.Stats
		b.Summary.DocumentsProcessed++
		b.Summary.TransactionsRecognized += st.Recognized
		b.Summary.SpansDropped += st.Dropped()
		b.Summary.Stats.Add(st)

		ev := log.Info()
		if st.Dropped() > 0 {
			ev = log.Warn()
		}
		ev.Str("batch", b.ID).Str("source", d.SourceID).
			Int("transactions", st.Recognized).Int("dropped", st.Dropped()).
			Msg("document parsed")
	}
	return b, nil
}

func (in *Ingester) process(path string) []DocumentResult {
	format, err := extractor.Detect(path)
	if err != nil {
		return []DocumentResult{failed(path, err)}
	}
	if format == extractor.FormatSpreadsheet {
		return in.processWorkbook(path)
	}

	extract := in.ExtractText
	if extract == nil {
		extract = extractor.ExtractText
	}
	text, err := extract(path)
	if err != nil {
		return []DocumentResult{failed(path, err)}
	}
	sourceID := filepath.Base(path)
	st, err := in.Parser.Parse(sourceID, text)
	if err != nil {
		return []DocumentResult{failed(path, err)}
	}
	return []DocumentResult{{Path: path, SourceID: sourceID, Statement: st}}
}

func (in *Ingester) processWorkbook(path string) []DocumentResult {
	if in.Sheets == nil {
		return []DocumentResult{failed(path, fmt.Errorf("%w: no spreadsheet reader configured", extractor.ErrUnsupportedFormat))}
	}
	sheets, err := in.Sheets.ReadFile(path)
	if err != nil {
		return []DocumentResult{failed(path, err)}
	}

	results := make([]DocumentResult, 0, len(sheets))
	for _, sh := range sheets {
		if sh.Err != nil {
			r := failed(path, sh.Err)
			r.SourceID = sh.Name
			results = append(results, r)
			continue
		}
		st, err := in.Parser.ParseGroups(sh.Name, sh.Groups)
		if err != nil {
			r := failed(path, err)
			r.SourceID = sh.Name
			results = append(results, r)
			continue
		}
		st.Stats.Lines = sh.Rows
		st.Stats.Spans += sh.Incomplete
		st.Stats.DroppedIncomplete = sh.Incomplete
		results = append(results, DocumentResult{Path: path, SourceID: sh.Name, Statement: st})
	}
	return results
}

func failed(path string, err error) DocumentResult {
	return DocumentResult{
		Path:     path,
		SourceID: filepath.Base(path),
		Err:      err,
		Error:    err.Error(),
	}
}
