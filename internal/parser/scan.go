package parser

import (
	"strings"

	"github.com/insightdelivered/bank-statement-analyzer/internal/models"
)

// RawGroup is the unnormalized content of one span.
type RawGroup struct {
	DateToken   string
	Description string
	Detail      []string
	AmountToken string
	TypeTag     string

	// Position is the ordinal of the date line; FirstLine..LastLine is the span.
	Position  int
	FirstLine int
	LastLine  int
}

// ScanResult is the outcome of scanning one document.
type ScanResult struct {
	Groups     []RawGroup
	Lines      int
	Spans      int
	Incomplete int
}

// Scan walks the lines once, starting a span at every date line and closing it
// at the next one or at end of input. Within a span the first amount line is the
// amount, the first other non-empty line is the description and the remaining
// non-empty lines are detail, in order. Spans without a description or an
// amount are dropped. Lines before the first date belong to no span.
func (c *Classifier) Scan(lines []models.RawLine) ScanResult {
	res := ScanResult{Lines: len(lines)}
	var cur *RawGroup

	flush := func() {
		if cur == nil {
			return
		}
		res.Spans++
		if cur.Description == "" || cur.AmountToken == "" {
			res.Incomplete++
		} else {
			res.Groups = append(res.Groups, *cur)
		}
		cur = nil
	}

	for _, line := range lines {
		text := strings.TrimSpace(line.Content)
		kind := c.Classify(text)

		if kind == models.DateLike {
			flush()
			cur = &RawGroup{
				DateToken: text,
				Position:  line.Position,
				FirstLine: line.Position,
				LastLine:  line.Position,
			}
			continue
		}
		if cur == nil {
			continue
		}
		cur.LastLine = line.Position
		if text == "" {
			continue
		}

		switch {
		case kind == models.AmountLike && cur.AmountToken == "":
			cur.AmountToken = text
		case cur.Description == "" && kind != models.AmountLike:
			cur.Description = text
		default:
			// later amounts are kept as detail text
			cur.Detail = append(cur.Detail, text)
		}
	}
	flush()

	return res
}

// SplitLines turns extracted text into positioned lines.
func SplitLines(text string) []models.RawLine {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	parts := strings.Split(text, "\n")
	lines := make([]models.RawLine, len(parts))
	for i, p := range parts {
		lines[i] = models.RawLine{Content: p, Position: i}
	}
	return lines
}
