// Package parser reconstructs transaction records from statement text.
package parser

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/insightdelivered/bank-statement-analyzer/internal/models"
	"github.com/insightdelivered/bank-statement-analyzer/internal/normalize"
)

// ErrMissingDefaultYear is returned when no default year was configured.
var ErrMissingDefaultYear = errors.New("default year is required")

// Parser turns one document's text into normalized transaction records.
type Parser struct {
	DefaultYear int

	classifier *Classifier
	normalizer *normalize.Normalizer
	log        zerolog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithLocale sets the number and date convention.
func WithLocale(loc normalize.Locale) Option {
	return func(p *Parser) {
		p.classifier = NewClassifier(loc)
		p.normalizer = normalize.New(loc)
	}
}

// WithLogger sets the logger used to report dropped spans.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Parser) {
		p.log = log
	}
}

// New returns a Parser that fills in defaultYear on dates without a year.
func New(defaultYear int, opts ...Option) *Parser {
	loc := normalize.BrazilianLocale()
	p := &Parser{
		DefaultYear: defaultYear,
		classifier:  NewClassifier(loc),
		normalizer:  normalize.New(loc),
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Classifier returns the line classifier in use.
func (p *Parser) Classifier() *Classifier {
	return p.classifier
}

// Parse extracts the records of one document. Malformed spans are counted in
// the statement stats, never returned as errors.
func (p *Parser) Parse(sourceID, text string) (*models.Statement, error) {
	if p.DefaultYear <= 0 {
		return nil, ErrMissingDefaultYear
	}
	res := p.classifier.Scan(SplitLines(text))

	st, err := p.ParseGroups(sourceID, res.Groups)
	if err != nil {
		return nil, err
	}
	st.Stats.Lines = res.Lines
	st.Stats.Spans = res.Spans
	st.Stats.DroppedIncomplete = res.Incomplete
	if res.Incomplete > 0 {
		p.log.Debug().Str("source", sourceID).Int("spans", res.Incomplete).Msg("dropped incomplete spans")
	}
	return st, nil
}

// ParseGroups normalizes groups that were already split into fields.
func (p *Parser) ParseGroups(sourceID string, groups []RawGroup) (*models.Statement, error) {
	if p.DefaultYear <= 0 {
		return nil, ErrMissingDefaultYear
	}
	st := &models.Statement{
		SourceID: sourceID,
		Records:  make([]models.TransactionRecord, 0, len(groups)),
	}
	st.Stats.Spans = len(groups)

	for _, g := range groups {
		date, err := p.normalizer.CompleteDate(g.DateToken, p.DefaultYear)
		if err != nil {
			st.Stats.DroppedDate++
			p.log.Debug().Str("source", sourceID).Int("line", g.Position).Err(err).Msg("dropped record")
			continue
		}
		amount, err := p.normalizer.DecodeAmount(g.AmountToken)
		if err != nil {
			st.Stats.DroppedAmount++
			p.log.Debug().Str("source", sourceID).Int("line", g.Position).Err(err).Msg("dropped record")
			continue
		}

		var detail []string
		if len(g.Detail) > 0 {
			detail = append(detail, g.Detail...)
		}
		st.Records = append(st.Records, models.TransactionRecord{
			Date:        date,
			Description: g.Description,
			Detail:      detail,
			Amount:      amount,
			SourceID:    sourceID,
			Position:    g.Position,
			TypeTag:     g.TypeTag,
		})
	}
	st.Stats.Recognized = len(st.Records)

	return st, nil
}
