package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/bank-statement-analyzer/internal/models"
)

// MonthlyBalance summarizes one calendar month.
type MonthlyBalance struct {
	Month          string          `json:"month"` // YYYY-MM
	Closing        decimal.Decimal `json:"closing"`
	ClosingDate    time.Time       `json:"closingDate"`
	FromCheckpoint bool            `json:"fromCheckpoint"`
	Inflow         decimal.Decimal `json:"inflow"`
	Outflow        decimal.Decimal `json:"outflow"` // magnitude
	Count          int             `json:"count"`
}

// Net is inflow minus outflow for the month.
func (m MonthlyBalance) Net() decimal.Decimal {
	return m.Inflow.Sub(m.Outflow)
}

// CategoryTotal is the outflow spent under one description.
type CategoryTotal struct {
	Description string          `json:"description"`
	Total       decimal.Decimal `json:"total"` // magnitude
	Share       decimal.Decimal `json:"share"`
	Count       int             `json:"count"`
}

// Report is the labeled, ordered view of a set of records.
type Report struct {
	Records        []models.TransactionRecord `json:"records"`
	Monthly        []MonthlyBalance           `json:"monthly"`
	Categories     []CategoryTotal            `json:"categories"`
	TotalInflow    decimal.Decimal            `json:"totalInflow"`
	TotalOutflow   decimal.Decimal            `json:"totalOutflow"`
	InitialBalance decimal.Decimal            `json:"initialBalance"`
	FinalBalance   decimal.Decimal            `json:"finalBalance"`
}

// ClassifyAndAggregate labels records, orders them chronologically, computes
// running balances from initial and builds the monthly and category views.
// The input slice is not modified.
func (c *Classifier) ClassifyAndAggregate(records []models.TransactionRecord, initial decimal.Decimal) *Report {
	labeled := c.Label(records)
	SortChronological(labeled)
	final := RunningBalances(labeled, initial)

	r := &Report{
		Records:        labeled,
		Monthly:        MonthlyBalances(labeled),
		Categories:     c.CategoryTotals(labeled),
		TotalInflow:    decimal.Zero,
		TotalOutflow:   decimal.Zero,
		InitialBalance: initial,
		FinalBalance:   final,
	}
	for _, rec := range labeled {
		switch rec.Kind {
		case models.Inflow:
			r.TotalInflow = r.TotalInflow.Add(rec.Amount)
		case models.Outflow:
			r.TotalOutflow = r.TotalOutflow.Add(rec.Amount.Abs())
		}
	}
	return r
}

func less(a, b models.TransactionRecord) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	if a.Position != b.Position {
		return a.Position < b.Position
	}
	return a.SourceOrder < b.SourceOrder
}

// SortChronological orders records by date, then position, then source order.
func SortChronological(records []models.TransactionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return less(records[i], records[j])
	})
}

// Merge combines the records of several statements into one chronological
// sequence. Statements are numbered in the order given; their slices are
// not modified.
func Merge(statements ...models.Statement) []models.TransactionRecord {
	var n int
	for _, st := range statements {
		n += len(st.Records)
	}
	out := make([]models.TransactionRecord, 0, n)
	for i, st := range statements {
		for _, rec := range st.Records {
			rec.SourceOrder = i
			out = append(out, rec)
		}
	}
	SortChronological(out)
	return out
}

// RunningBalances sets RunningBalance on already ordered records, starting
// from initial, and returns the final balance.
func RunningBalances(records []models.TransactionRecord, initial decimal.Decimal) decimal.Decimal {
	bal := initial
	for i := range records {
		bal = bal.Add(records[i].Amount)
		records[i].RunningBalance = bal
	}
	return bal
}

// MonthlyBalances groups ordered, labeled records by month. The closing value
// is the amount of the month's last balance checkpoint; without one, the
// running balance of the month's last record stands in.
func MonthlyBalances(records []models.TransactionRecord) []MonthlyBalance {
	index := make(map[string]int)
	var months []MonthlyBalance

	for _, rec := range records {
		key := rec.Month()
		i, ok := index[key]
		if !ok {
			i = len(months)
			index[key] = i
			months = append(months, MonthlyBalance{Month: key, Inflow: decimal.Zero, Outflow: decimal.Zero})
		}
		m := &months[i]
		m.Count++

		switch rec.Kind {
		case models.BalanceCheckpoint:
			if !m.FromCheckpoint || !rec.Date.Before(m.ClosingDate) {
				m.Closing = rec.Amount
				m.ClosingDate = rec.Date
				m.FromCheckpoint = true
			}
			continue
		case models.Inflow:
			m.Inflow = m.Inflow.Add(rec.Amount)
		case models.Outflow:
			m.Outflow = m.Outflow.Add(rec.Amount.Abs())
		}
		if !m.FromCheckpoint && !rec.Date.Before(m.ClosingDate) {
			m.Closing = rec.RunningBalance
			m.ClosingDate = rec.Date
		}
	}

	sort.SliceStable(months, func(i, j int) bool {
		return months[i].Month < months[j].Month
	})
	return months
}

// CategoryTotals sums Outflow magnitudes per description and keeps only the
// categories holding at least CategoryThreshold of the total outflow.
// Dropped categories are not folded into a remainder.
func (c *Classifier) CategoryTotals(records []models.TransactionRecord) []CategoryTotal {
	index := make(map[string]int)
	var cats []CategoryTotal
	total := decimal.Zero

	for _, rec := range records {
		if rec.Kind != models.Outflow {
			continue
		}
		amt := rec.Amount.Abs()
		total = total.Add(amt)

		i, ok := index[rec.Description]
		if !ok {
			i = len(cats)
			index[rec.Description] = i
			cats = append(cats, CategoryTotal{Description: rec.Description, Total: decimal.Zero})
		}
		cats[i].Total = cats[i].Total.Add(amt)
		cats[i].Count++
	}
	if !total.IsPositive() {
		return nil
	}

	floor := c.CategoryThreshold.Mul(total)
	kept := cats[:0]
	for _, cat := range cats {
		if cat.Total.LessThan(floor) {
			continue
		}
		cat.Share = cat.Total.Div(total)
		kept = append(kept, cat)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if !kept[i].Total.Equal(kept[j].Total) {
			return kept[i].Total.GreaterThan(kept[j].Total)
		}
		return kept[i].Description < kept[j].Description
	})
	return kept
}
