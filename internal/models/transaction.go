package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RawLine is a single line of extracted statement text.
type RawLine struct {
	Content  string
	Position int
}

// TokenKind tags what a line looks like to the line classifier.
type TokenKind int

const (
	FreeText TokenKind = iota
	DateLike
	AmountLike
)

func (k TokenKind) String() string {
	switch k {
	case DateLike:
		return "date"
	case AmountLike:
		return "amount"
	default:
		return "text"
	}
}

// Kind is the derived classification of a transaction record.
type Kind string

const (
	KindUnknown       Kind = ""
	Inflow            Kind = "INFLOW"
	Outflow           Kind = "OUTFLOW"
	BalanceCheckpoint Kind = "BALANCE"
)

// TransactionRecord represents a single dated statement entry.
type TransactionRecord struct {
	Date        time.Time       `json:"date"`
	Description string          `json:"description"` // "Histórico"
	Detail      []string        `json:"detail,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	SourceID    string          `json:"sourceId"`
	SourceOrder int             `json:"-"`
	Position    int             `json:"position"`
	TypeTag     string          `json:"typeTag,omitempty"` // explicit type column from spreadsheets

	Kind           Kind            `json:"kind,omitempty"`
	RunningBalance decimal.Decimal `json:"runningBalance"`
}

// DetailText joins the detail lines for display.
func (r TransactionRecord) DetailText() string {
	return strings.Join(r.Detail, " ")
}

// Month returns the calendar month key (YYYY-MM) of the record.
func (r TransactionRecord) Month() string {
	return r.Date.Format("2006-01")
}

// ParseStats counts what happened to the spans of one document.
type ParseStats struct {
	Lines             int `json:"lines"`
	Spans             int `json:"spans"`
	Recognized        int `json:"recognized"`
	DroppedIncomplete int `json:"droppedIncomplete"`
	DroppedDate       int `json:"droppedDate"`
	DroppedAmount     int `json:"droppedAmount"`
}

// Dropped is the number of spans that did not yield a record.
func (s ParseStats) Dropped() int {
	return s.DroppedIncomplete + s.DroppedDate + s.DroppedAmount
}

// Add accumulates o into s.
func (s *ParseStats) Add(o ParseStats) {
	s.Lines += o.Lines
	s.Spans += o.Spans
	s.Recognized += o.Recognized
	s.DroppedIncomplete += o.DroppedIncomplete
	s.DroppedDate += o.DroppedDate
	s.DroppedAmount += o.DroppedAmount
}

// Statement holds the records parsed from one source document.
type Statement struct {
	SourceID string              `json:"sourceId"`
	Records  []TransactionRecord `json:"records"`
	Stats    ParseStats          `json:"stats"`
}
