package parser

import (
	"regexp"
	"strings"

	"github.com/insightdelivered/bank-statement-analyzer/internal/models"
	"github.com/insightdelivered/bank-statement-analyzer/internal/normalize"
)

// Statement dates: DD/MM or DD-MM with an optional four-digit year.
var datePattern = regexp.MustCompile(`^\d{2}[/-]\d{2}(?:[/-]\d{4})?$`)

// Classifier tags single lines as dates, amounts or free text.
type Classifier struct {
	amountPattern *regexp.Regexp
}

// NewClassifier builds a classifier whose amount shape follows loc.
func NewClassifier(loc normalize.Locale) *Classifier {
	return &Classifier{amountPattern: amountPatternFor(loc)}
}

// amountPatternFor builds e.g. ^-?(?:\d{1,3}(?:\.\d{3})+|\d+),\d{2} ?[DC]?$
func amountPatternFor(loc normalize.Locale) *regexp.Regexp {
	dec := regexp.QuoteMeta(loc.DecimalSeparator)
	integer := `\d+`
	if loc.GroupingSeparator != "" {
		grp := regexp.QuoteMeta(loc.GroupingSeparator)
		integer = `(?:\d{1,3}(?:` + grp + `\d{3})+|\d+)`
	}
	return regexp.MustCompile(`^-?` + integer + dec + `\d{2} ?[DC]?$`)
}

// IsDate reports whether the line is a date token.
func IsDate(line string) bool {
	return datePattern.MatchString(strings.TrimSpace(line))
}

// IsAmount reports whether the line is an amount token.
func (c *Classifier) IsAmount(line string) bool {
	return c.amountPattern.MatchString(strings.TrimSpace(line))
}

// Classify tags a line. A date match wins over an amount match.
func (c *Classifier) Classify(line string) models.TokenKind {
	switch {
	case IsDate(line):
		return models.DateLike
	case c.IsAmount(line):
		return models.AmountLike
	default:
		return models.FreeText
	}
}
