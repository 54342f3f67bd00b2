package ingest

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/insightdelivered/bank-statement-analyzer/internal/extractor"
	"github.com/insightdelivered/bank-statement-analyzer/internal/logger"
	"github.com/insightdelivered/bank-statement-analyzer/internal/models"
	"github.com/insightdelivered/bank-statement-analyzer/internal/normalize"
	"github.com/insightdelivered/bank-statement-analyzer/internal/parser"
	"github.com/insightdelivered/bank-statement-analyzer/internal/report"
)

const marchText = `SICOOB - EXTRATO
05/03
Saldo Anterior
2.340,50C
01/03
Pagamento Fornecedor
NF 1234
150,00D
02/03
03/03
PIX RECEBIDO
1.234,56
`

const aprilText = `01/04
TARIFA
12,90D
31/04
INVALIDA
1,00D
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func logged(buf *bytes.Buffer) context.Context {
	return logger.WithContext(context.Background(), logger.NewWithWriter(buf))
}

func newIngester(t *testing.T) *Ingester {
	t.Helper()
	m, err := extractor.NewColumnMapping(map[string]string{
		"data": "date", "historico": "description", "valor": "amount",
	}, -1)
	require.NoError(t, err)
	return &Ingester{
		Parser:  parser.New(2024),
		Sheets:  &extractor.SheetReader{Mapping: m, Locale: normalize.BrazilianLocale()},
		Workers: 2,
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	march := writeFile(t, dir, "marco.txt", marchText)
	april := writeFile(t, dir, "abril.txt", aprilText)
	missing := filepath.Join(dir, "missing.txt")
	unknown := writeFile(t, dir, "extrato.ofx", "x")

	var buf bytes.Buffer
	in := newIngester(t)

	b, err := in.Run(logged(&buf), []string{march, missing, april, unknown})
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID)
	require.Len(t, b.Documents, 4)
	assert.Equal(t, "marco.txt", b.Documents[0].SourceID)
	assert.Error(t, b.Documents[1].Err)
	assert.Equal(t, "abril.txt", b.Documents[2].SourceID)
	assert.True(t, errors.Is(b.Documents[3].Err, extractor.ErrUnsupportedFormat))

	assert.Equal(t, 2, b.Summary.DocumentsProcessed)
	assert.Equal(t, 2, b.Summary.DocumentsFailed)
	assert.Equal(t, 4, b.Summary.TransactionsRecognized)
	assert.Equal(t, 2, b.Summary.SpansDropped)
	assert.Equal(t, 1, b.Summary.Stats.DroppedIncomplete)
	assert.Equal(t, 1, b.Summary.Stats.DroppedDate)

	assert.Contains(t, buf.String(), "document failed")
	assert.Len(t, b.Statements(), 2)
}

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	march := writeFile(t, dir, "marco.txt", marchText)

	b, err := newIngester(t).Run(context.Background(), []string{march})
	require.NoError(t, err)

	r := report.NewClassifier().ClassifyAndAggregate(report.Merge(b.Statements()...), decimal.Zero)

	require.Len(t, r.Records, 3)
	first := r.Records[0]
	assert.Equal(t, "Pagamento Fornecedor", first.Description)
	assert.Equal(t, []string{"NF 1234"}, first.Detail)
	assert.Equal(t, models.Outflow, first.Kind)
	assert.True(t, first.Amount.Equal(decimal.NewFromInt(-150)))

	assert.Equal(t, "PIX RECEBIDO", r.Records[1].Description)
	assert.Equal(t, models.Inflow, r.Records[1].Kind)

	assert.Equal(t, models.BalanceCheckpoint, r.Records[2].Kind)
	assert.True(t, r.TotalInflow.Equal(decimal.RequireFromString("1234.56")))
	assert.True(t, r.TotalOutflow.Equal(decimal.NewFromInt(150)))

	require.Len(t, r.Monthly, 1)
	assert.True(t, r.Monthly[0].FromCheckpoint)
	assert.True(t, r.Monthly[0].Closing.Equal(decimal.RequireFromString("2340.50")))
}

func TestRun_Workbook(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Conta"))
	require.NoError(t, f.SetSheetRow("Conta", "A1", &[]interface{}{"Data", "Histórico", "Valor"}))
	require.NoError(t, f.SetSheetRow("Conta", "A2", &[]interface{}{"01/03", "Saldo Anterior", "100,00C"}))
	require.NoError(t, f.SetSheetRow("Conta", "A3", &[]interface{}{"02/03", "MERCADO", -25.5}))
	require.NoError(t, f.SetSheetRow("Conta", "A4", &[]interface{}{"03/03", "", 1}))
	_, err := f.NewSheet("Vazia")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "extrato.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	var buf bytes.Buffer
	b, err := newIngester(t).Run(logged(&buf), []string{path})
	require.NoError(t, err)

	require.Len(t, b.Documents, 2)
	conta := b.Documents[0]
	require.NotNil(t, conta.Statement)
	assert.Equal(t, "Conta", conta.SourceID)
	require.Len(t, conta.Statement.Records, 2)
	assert.Equal(t, "Conta", conta.Statement.Records[0].SourceID)
	assert.True(t, conta.Statement.Records[1].Amount.Equal(decimal.RequireFromString("-25.5")))
	assert.Equal(t, 1, conta.Statement.Stats.DroppedIncomplete)

	assert.Equal(t, "Vazia", b.Documents[1].SourceID)
	assert.Error(t, b.Documents[1].Err)
	assert.Equal(t, 1, b.Summary.DocumentsFailed)
}

func TestRun_MissingDefaultYear(t *testing.T) {
	in := &Ingester{Parser: parser.New(0)}
	_, err := in.Run(context.Background(), []string{"a.txt"})
	assert.True(t, errors.Is(err, parser.ErrMissingDefaultYear))
}

func TestRun_CustomExtractor(t *testing.T) {
	in := newIngester(t)
	in.ExtractText = func(path string) (string, error) {
		if path == "bad.pdf" {
			return "", errors.New("encrypted")
		}
		return "01/03\nPIX\n10,00C", nil
	}

	b, err := in.Run(context.Background(), []string{"good.pdf", "bad.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 1, b.Summary.DocumentsProcessed)
	assert.Equal(t, 1, b.Summary.DocumentsFailed)
	assert.Equal(t, "encrypted", b.Documents[1].Error)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b, err := newIngester(t).Run(ctx, []string{"a.txt", "b.txt"})
	require.NoError(t, err)
	assert.Equal(t, 2, b.Summary.DocumentsFailed)
}
