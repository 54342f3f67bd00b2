// Package report labels transaction records and derives balances and totals.
package report

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/bank-statement-analyzer/internal/models"
)

// DefaultBalanceKeywords mark a description as a reported balance.
var DefaultBalanceKeywords = []string{
	"saldo",
	"saldo anterior",
	"saldo atual",
	"saldo final",
	"saldo inicial",
}

// DefaultBalanceTypeTags are explicit type column values meaning a balance row.
var DefaultBalanceTypeTags = []string{"saldo", "balance", "sld"}

// DefaultCategoryThreshold is the minimum share of total outflow a category needs.
var DefaultCategoryThreshold = decimal.NewFromFloat(0.01)

// Classifier assigns kinds and builds aggregates.
type Classifier struct {
	BalanceKeywords   []string
	BalanceTypeTags   []string
	CategoryThreshold decimal.Decimal
}

// NewClassifier returns a Classifier with the default keyword set and threshold.
func NewClassifier() *Classifier {
	return &Classifier{
		BalanceKeywords:   append([]string(nil), DefaultBalanceKeywords...),
		BalanceTypeTags:   append([]string(nil), DefaultBalanceTypeTags...),
		CategoryThreshold: DefaultCategoryThreshold,
	}
}

// IsBalance reports whether text contains any balance keyword, ignoring case.
func (c *Classifier) IsBalance(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range c.BalanceKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// IsBalanceTag reports whether an explicit type tag names a balance row.
func (c *Classifier) IsBalanceTag(tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return false
	}
	for _, t := range c.BalanceTypeTags {
		if strings.EqualFold(tag, strings.TrimSpace(t)) {
			return true
		}
	}
	return c.IsBalance(tag)
}

// KindOf classifies one record. Balance keywords in the description or the
// explicit type tag win over the amount sign; a zero amount is an Outflow.
func (c *Classifier) KindOf(rec models.TransactionRecord) models.Kind {
	if c.IsBalance(rec.Description) || c.IsBalanceTag(rec.TypeTag) {
		return models.BalanceCheckpoint
	}
	if rec.Amount.IsPositive() {
		return models.Inflow
	}
	return models.Outflow
}

// Label returns a copy of records with Kind set.
func (c *Classifier) Label(records []models.TransactionRecord) []models.TransactionRecord {
	out := make([]models.TransactionRecord, len(records))
	for i, rec := range records {
		rec.Kind = c.KindOf(rec)
		out[i] = rec
	}
	return out
}
