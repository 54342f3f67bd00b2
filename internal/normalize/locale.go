package normalize

import (
	"errors"
	"fmt"
)

// Locale describes how dates and amounts are written in a statement.
type Locale struct {
	DecimalSeparator  string `mapstructure:"decimal_separator" json:"decimalSeparator"`
	GroupingSeparator string `mapstructure:"grouping_separator" json:"groupingSeparator"`
	DayFirst          bool   `mapstructure:"day_first" json:"dayFirst"`
}

// BrazilianLocale is the default: 1.234,56 and DD/MM dates.
func BrazilianLocale() Locale {
	return Locale{
		DecimalSeparator:  ",",
		GroupingSeparator: ".",
		DayFirst:          true,
	}
}

// Validate checks that the separators are single, distinct characters.
func (l Locale) Validate() error {
	if len(l.DecimalSeparator) != 1 {
		return fmt.Errorf("decimal separator must be one character, got %q", l.DecimalSeparator)
	}
	if len(l.GroupingSeparator) > 1 {
		return fmt.Errorf("grouping separator must be at most one character, got %q", l.GroupingSeparator)
	}
	if l.DecimalSeparator == l.GroupingSeparator {
		return errors.New("decimal and grouping separators must differ")
	}
	return nil
}
