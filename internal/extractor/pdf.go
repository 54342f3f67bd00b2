package extractor

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// extractPDF reads a PDF and returns its text with one line per visual row.
// It tries row reconstruction first and whole-document plain text second.
func extractPDF(filePath string) (string, error) {
	pages, err := extractWithLibrary(filePath)
	if err != nil {
		return "", fmt.Errorf("PDF text extraction failed: %w", err)
	}
	if !isReadableText(pages) {
		return "", fmt.Errorf("no readable text could be extracted from PDF; it may be image-based or use custom font encodings")
	}
	return strings.Join(pages, "\n"), nil
}

// extractWithLibrary uses the ledongthuc/pdf library, recovering from its panics.
func extractWithLibrary(filePath string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF library crashed: %v", r)
		}
	}()

	f, r, openErr := pdf.Open(filePath)
	if openErr != nil {
		return nil, openErr
	}
	defer f.Close()

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	pages = extractByRow(r, numPages)
	if isReadableText(pages) {
		return pages, nil
	}

	if text := extractByReaderPlainText(r); text != "" {
		return []string{text}, nil
	}
	return pages, nil
}

// extractByRow rebuilds each visual row as table cells, one cell per line, so
// that a date, a description and an amount printed side by side reach the
// parser as separate lines.
func extractByRow(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		var lines []string
		for _, row := range rows {
			lines = append(lines, rowCells(row.Content)...)
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

// cellGap splits a single text run printed with column padding.
var cellGap = regexp.MustCompile(`\s{2,}|\t`)

// rowCells turns the runs of one row into cells. Runs sharing an X position are
// pieces of one TJ array and are concatenated. Adjacent free-text runs are
// words of the same cell; a numeric run (date or amount) always stands alone.
func rowCells(runs pdf.TextHorizontal) []string {
	var merged []string
	lastX, first := 0.0, true
	for _, t := range runs {
		if t.S == "" {
			continue
		}
		if !first && t.X == lastX {
			merged[len(merged)-1] += t.S
			continue
		}
		merged = append(merged, t.S)
		lastX, first = t.X, false
	}

	var cells []string
	prevNumeric := true
	for _, run := range merged {
		for _, piece := range cellGap.Split(run, -1) {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			numeric := isNumericCell(piece)
			if len(cells) > 0 && !numeric && !prevNumeric {
				cells[len(cells)-1] += " " + piece
			} else {
				cells = append(cells, piece)
			}
			prevNumeric = numeric
		}
	}
	return cells
}

// isNumericCell reports whether s looks like a date or an amount: it starts
// with a digit (or a sign) and holds only digits, separators and a D/C marker.
func isNumericCell(s string) bool {
	body := strings.TrimPrefix(s, "-")
	if body == "" || !unicode.IsDigit(rune(body[0])) {
		return false
	}
	for _, r := range body {
		if !unicode.IsDigit(r) && !strings.ContainsRune("./-, DC", r) {
			return false
		}
	}
	return true
}

func extractByReaderPlainText(r *pdf.Reader) string {
	reader, err := r.GetPlainText()
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// textQuality returns the share of letters, digits, spaces and common
// punctuation among all runes.
func textQuality(pages []string) float64 {
	total, readable := 0, 0
	for _, page := range pages {
		for _, r := range page {
			total++
			if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) ||
				strings.ContainsRune(".,-/:;()'\"$%&@#*+=", r) {
				readable++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

// isReadableText rejects empty output and binary garbage.
func isReadableText(pages []string) bool {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p))
	}
	return n > 0 && textQuality(pages) > 0.6
}
