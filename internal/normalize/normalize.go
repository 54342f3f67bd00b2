// Package normalize converts raw statement tokens into typed values.
package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidAmount = errors.New("invalid amount")
)

// Marker is the debit/credit suffix on an amount token.
type Marker byte

const (
	NoMarker Marker = 0
	Debit    Marker = 'D'
	Credit   Marker = 'C'
)

// Normalizer turns locale-formatted tokens into canonical values.
type Normalizer struct {
	Locale Locale
}

// New returns a Normalizer for the given locale.
func New(loc Locale) *Normalizer {
	return &Normalizer{Locale: loc}
}

// CompleteDate parses a DD/MM[/YYYY] token (or MM/DD when the locale is not
// day-first), appending defaultYear when the token carries no year.
// Both "/" and "-" are accepted as separators.
func (n *Normalizer) CompleteDate(token string, defaultYear int) (time.Time, error) {
	token = strings.TrimSpace(strings.ReplaceAll(token, "-", "/"))
	parts := strings.Split(token, "/")
	if len(parts) == 2 {
		parts = append(parts, strconv.Itoa(defaultYear))
	}
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, token)
	}

	layout := "02/01/2006"
	if !n.Locale.DayFirst {
		layout = "01/02/2006"
	}
	d, err := time.Parse(layout, strings.Join(parts, "/"))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, token)
	}
	return d, nil
}

// SplitMarker separates a trailing D/C marker from an amount token.
func SplitMarker(token string) (string, Marker) {
	token = strings.TrimSpace(token)
	if token == "" {
		return token, NoMarker
	}
	switch Marker(token[len(token)-1]) {
	case Debit:
		return strings.TrimSpace(token[:len(token)-1]), Debit
	case Credit:
		return strings.TrimSpace(token[:len(token)-1]), Credit
	}
	return token, NoMarker
}

// DecodeAmount parses an amount token such as "2.340,50C". A D marker forces
// the value negative, C forces it positive and no marker keeps the parsed sign.
func (n *Normalizer) DecodeAmount(token string) (decimal.Decimal, error) {
	number, marker := SplitMarker(token)
	if g := n.Locale.GroupingSeparator; g != "" {
		number = strings.ReplaceAll(number, g, "")
	}
	number = strings.ReplaceAll(number, n.Locale.DecimalSeparator, ".")
	number = strings.ReplaceAll(number, " ", "")

	v, err := decimal.NewFromString(number)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, token)
	}
	return ApplyMarker(v, marker), nil
}

// ApplyMarker applies the sign policy of a debit/credit marker.
func ApplyMarker(v decimal.Decimal, m Marker) decimal.Decimal {
	switch m {
	case Debit:
		return v.Abs().Neg()
	case Credit:
		return v.Abs()
	}
	return v
}

// ParseMarker reads an explicit marker value from a spreadsheet column.
func ParseMarker(s string) Marker {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "D", "DEBITO", "DÉBITO", "DEBIT":
		return Debit
	case "C", "CREDITO", "CRÉDITO", "CREDIT":
		return Credit
	}
	return NoMarker
}
