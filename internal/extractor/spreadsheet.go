package extractor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/insightdelivered/bank-statement-analyzer/internal/normalize"
	"github.com/insightdelivered/bank-statement-analyzer/internal/parser"
)

// Field is a canonical record field a spreadsheet column can feed.
type Field string

const (
	FieldDate        Field = "date"
	FieldDescription Field = "description"
	FieldDetail      Field = "detail"
	FieldAmount      Field = "amount"
	FieldMarker      Field = "marker"
	FieldType        Field = "type"
)

// headerScanRows bounds how far down a sheet the header row is searched.
const headerScanRows = 20

var (
	errNoHeader  = errors.New("no header row with date and amount columns")
	errNoMapping = errors.New("no spreadsheet column mapping configured")
)

// ColumnMapping resolves header names through an explicit table.
type ColumnMapping struct {
	names               map[string]Field
	FallbackDescription int
}

// NewColumnMapping builds a mapping from {accepted header name: field name}.
// fallback is the zero-based column used for the description when no header
// maps to it; a negative value disables the fallback.
func NewColumnMapping(table map[string]string, fallback int) (*ColumnMapping, error) {
	m := &ColumnMapping{names: make(map[string]Field, len(table)), FallbackDescription: fallback}
	for name, field := range table {
		f := Field(strings.ToLower(strings.TrimSpace(field)))
		switch f {
		case FieldDate, FieldDescription, FieldDetail, FieldAmount, FieldMarker, FieldType:
		default:
			return nil, fmt.Errorf("column %q maps to unknown field %q", name, field)
		}
		m.names[FoldHeader(name)] = f
	}
	return m, nil
}

// Columns holds resolved column indexes; -1 means absent.
type Columns struct {
	Date        int
	Description int
	Detail      []int
	Amount      int
	Marker      int
	Type        int
}

// Resolve maps one header row. The first column claiming a field wins, except
// detail which may span several columns.
func (m *ColumnMapping) Resolve(header []string) (Columns, error) {
	cols := Columns{Date: -1, Description: -1, Amount: -1, Marker: -1, Type: -1}
	for i, name := range header {
		f, ok := m.names[FoldHeader(name)]
		if !ok {
			continue
		}
		switch f {
		case FieldDate:
			setOnce(&cols.Date, i)
		case FieldDescription:
			setOnce(&cols.Description, i)
		case FieldAmount:
			setOnce(&cols.Amount, i)
		case FieldMarker:
			setOnce(&cols.Marker, i)
		case FieldType:
			setOnce(&cols.Type, i)
		case FieldDetail:
			cols.Detail = append(cols.Detail, i)
		}
	}
	if cols.Date < 0 || cols.Amount < 0 {
		return cols, errNoHeader
	}
	if cols.Description < 0 && m.FallbackDescription >= 0 &&
		m.FallbackDescription != cols.Date && m.FallbackDescription != cols.Amount {
		cols.Description = m.FallbackDescription
	}
	return cols, nil
}

func setOnce(dst *int, i int) {
	if *dst < 0 {
		*dst = i
	}
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldHeader lower-cases a header, strips accents and light punctuation and
// collapses spaces: "Valor (R$)" becomes "valor r$", "Histórico" becomes "historico".
func FoldHeader(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	folded = strings.Map(func(r rune) rune {
		switch r {
		case '(', ')', ':', '.', '_':
			return ' '
		}
		return unicode.ToLower(r)
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}

// Sheet is one worksheet read as a document.
type Sheet struct {
	Name       string
	Groups     []parser.RawGroup
	Rows       int
	Incomplete int
	Err        error
}

// SheetReader reads statement rows out of xlsx workbooks.
type SheetReader struct {
	Mapping *ColumnMapping
	Locale  normalize.Locale
}

// ReadFile opens the workbook at path.
func (sr *SheetReader) ReadFile(path string) ([]Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return sr.Read(f)
}

// Read returns every worksheet of the workbook. A sheet without a usable
// header carries Err instead of groups.
func (sr *SheetReader) Read(r io.Reader) ([]Sheet, error) {
	if sr.Mapping == nil {
		return nil, errNoMapping
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			sheets = append(sheets, Sheet{Name: name, Err: err})
			continue
		}
		sheets = append(sheets, sr.readRows(name, rows, numericCells(f, name)))
	}
	return sheets, nil
}

// numericCells reports whether the cell at a zero-based row and column holds
// a number rather than text. Only numbers are safe to read as machine
// decimals: a text cell "1.500" is a grouped amount, not 1.5.
func numericCells(f *excelize.File, sheet string) func(row, col int) bool {
	return func(row, col int) bool {
		axis, err := excelize.CoordinatesToCellName(col+1, row+1)
		if err != nil {
			return false
		}
		typ, err := f.GetCellType(sheet, axis)
		if err != nil {
			return false
		}
		return typ == excelize.CellTypeUnset || typ == excelize.CellTypeNumber
	}
}

func (sr *SheetReader) readRows(name string, rows [][]string, numeric func(row, col int) bool) Sheet {
	sheet := Sheet{Name: name, Rows: len(rows)}

	headerRow := -1
	var cols Columns
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		c, err := sr.Mapping.Resolve(rows[i])
		if err == nil {
			headerRow, cols = i, c
			break
		}
	}
	if headerRow < 0 {
		sheet.Err = fmt.Errorf("sheet %q: %w", name, errNoHeader)
		return sheet
	}

	for i := headerRow + 1; i < len(rows); i++ {
		row := rows[i]
		if isBlankRow(row) {
			continue
		}
		g := parser.RawGroup{
			DateToken:   sr.dateToken(cell(row, cols.Date)),
			Description: cell(row, cols.Description),
			AmountToken: sr.amountToken(cell(row, cols.Amount), cell(row, cols.Marker), numeric(i, cols.Amount)),
			TypeTag:     cell(row, cols.Type),
			Position:    i,
			FirstLine:   i,
			LastLine:    i,
		}
		for _, c := range cols.Detail {
			if v := cell(row, c); v != "" {
				g.Detail = append(g.Detail, v)
			}
		}
		if g.DateToken == "" || g.Description == "" || g.AmountToken == "" {
			sheet.Incomplete++
			continue
		}
		sheet.Groups = append(sheet.Groups, g)
	}
	return sheet
}

// dateToken keeps textual dates and renders Excel serial numbers and ISO
// dates in the locale's day/month order.
func (sr *SheetReader) dateToken(v string) string {
	if v == "" || parser.IsDate(v) {
		return v
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		serial, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return v
		}
		if t, err = excelize.ExcelDateToTime(serial, false); err != nil {
			return v
		}
	}
	if sr.Locale.DayFirst {
		return t.Format("02/01/2006")
	}
	return t.Format("01/02/2006")
}

// amountToken renders numeric cells with the locale's decimal separator and
// appends an explicit D/C marker column when present. Text cells are passed
// through as written.
func (sr *SheetReader) amountToken(v, marker string, numeric bool) string {
	if v == "" {
		return ""
	}
	if numeric {
		if d, err := decimal.NewFromString(v); err == nil {
			v = strings.Replace(d.StringFixed(2), ".", sr.Locale.DecimalSeparator, 1)
		}
	}
	if _, m := normalize.SplitMarker(v); m != normalize.NoMarker {
		return v
	}
	switch normalize.ParseMarker(marker) {
	case normalize.Debit:
		v += "D"
	case normalize.Credit:
		v += "C"
	}
	return v
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
