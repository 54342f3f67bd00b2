package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statementText = `05/03
Saldo Anterior
2.340,50C
01/03
Pagamento Fornecedor
NF 1234
150,00D
03/03
PIX RECEBIDO
1.234,56
`

func writeStatement(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "marco.txt")
	require.NoError(t, os.WriteFile(path, []byte(statementText), 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd, "rootCmd should be defined")
	assert.Equal(t, "statement-analyzer", rootCmd.Use)
	assert.Contains(t, rootCmd.Short, "bank statement")
	assert.Contains(t, rootCmd.Long, "Statement Analyzer")

	names := []string{}
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"parse", "report", "serve"})

	for _, flag := range []string{"config", "year", "initial-balance", "workers", "log-level"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flag), "missing --%s", flag)
	}
}

// Runs before any test sets --year, flag state is shared across Execute calls.
func TestParseCommand_MissingYear(t *testing.T) {
	_, err := execute(t, "parse", writeStatement(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--year")
}

func TestParseCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.csv")
	stdout, err := execute(t, "parse", writeStatement(t), "--year", "2024", "--log-level", "error", "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "marco.txt: 3 transaction(s), 0 span(s) dropped")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "01/03/2024,marco.txt,Pagamento Fornecedor,NF 1234,OUTFLOW,-150.00,-150.00", lines[len(lines)-3])
	assert.Equal(t, "05/03/2024,marco.txt,Saldo Anterior,,BALANCE,2340.50,3425.06", lines[len(lines)-1])
}

func TestReportCommand_JSON(t *testing.T) {
	stdout, err := execute(t, "report", writeStatement(t), "--year", "2024", "--log-level", "error", "--json")
	require.NoError(t, err)

	var got struct {
		Summary struct {
			TransactionsRecognized int `json:"transactionsRecognized"`
		} `json:"summary"`
		Monthly []struct {
			Month          string `json:"month"`
			Closing        string `json:"closing"`
			FromCheckpoint bool   `json:"fromCheckpoint"`
		} `json:"monthly"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, 3, got.Summary.TransactionsRecognized)
	require.Len(t, got.Monthly, 1)
	assert.Equal(t, "2024-03", got.Monthly[0].Month)
	assert.Equal(t, "2340.5", got.Monthly[0].Closing)
	assert.True(t, got.Monthly[0].FromCheckpoint)
}
