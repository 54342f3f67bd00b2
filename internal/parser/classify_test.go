package parser

import (
	"testing"

	"github.com/insightdelivered/bank-statement-analyzer/internal/models"
	"github.com/insightdelivered/bank-statement-analyzer/internal/normalize"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(normalize.BrazilianLocale())

	tests := []struct {
		input    string
		expected models.TokenKind
	}{
		{"01/03", models.DateLike},
		{"01-03", models.DateLike},
		{"01/03/2024", models.DateLike},
		{"  15/12  ", models.DateLike},
		{"1/3", models.FreeText},
		{"01/03/24", models.FreeText},
		{"01/03 PIX", models.FreeText},
		{"150,00D", models.AmountLike},
		{"2.340,50C", models.AmountLike},
		{"1.234,56", models.AmountLike},
		{"1234,56", models.AmountLike},
		{"12,00 D", models.AmountLike},
		{"-0,50", models.AmountLike},
		{"150,00X", models.FreeText},
		{"150,0", models.FreeText},
		{"150.00", models.FreeText},
		{"12.34,56", models.FreeText},
		{"Pagamento Fornecedor", models.FreeText},
		{"", models.FreeText},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := c.Classify(tt.input)
			if got != tt.expected {
				t.Errorf("Classify(%q): got %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestClassify_Locale(t *testing.T) {
	c := NewClassifier(normalize.Locale{DecimalSeparator: ".", GroupingSeparator: ",", DayFirst: true})

	if got := c.Classify("1,234.56D"); got != models.AmountLike {
		t.Errorf("got %v, want amount", got)
	}
	if got := c.Classify("1.234,56D"); got != models.FreeText {
		t.Errorf("got %v, want text", got)
	}
}

func TestIsDate(t *testing.T) {
	if !IsDate("31/12/2023") {
		t.Error("expected 31/12/2023 to be a date")
	}
	if IsDate("SALDO 31/12") {
		t.Error("date inside text must not be a date line")
	}
}
