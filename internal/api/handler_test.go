package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/bank-statement-analyzer/internal/models"
)

const statementText = "05/03\nSaldo Anterior\n2.340,50C\n01/03\nPagamento Fornecedor\nNF 1234\n150,00D\n02/03\n"

func setupTestApp(defaultYear int) *fiber.App {
	return NewApp(&Handler{DefaultYear: defaultYear, InitialBalance: decimal.Zero})
}

func decode(t *testing.T, resp *http.Response) ParseResponse {
	t.Helper()
	body, _ := io.ReadAll(resp.Body)
	var result ParseResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to decode response %q: %v", body, err)
	}
	return result
}

func postJSON(t *testing.T, app *fiber.App, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/parse", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	app := setupTestApp(2024)

	req := httptest.NewRequest("GET", "/api/health", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var result map[string]string
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if result["status"] != "ok" {
		t.Errorf("expected status=ok, got %q", result["status"])
	}
	if result["engine"] != "fiber" {
		t.Errorf("expected engine=fiber, got %q", result["engine"])
	}
	if result["version"] != Version {
		t.Errorf("expected version=%s, got %q", Version, result["version"])
	}
}

func TestParseEndpoint(t *testing.T) {
	app := setupTestApp(2024)

	body, _ := json.Marshal(ParseRequest{SourceID: "marco.txt", Text: statementText, InitialBalance: "100"})
	resp := postJSON(t, app, string(body))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	result := decode(t, resp)
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Stats.Recognized != 2 || result.Stats.DroppedIncomplete != 1 {
		t.Errorf("unexpected stats: %+v", result.Stats)
	}
	if result.Report == nil || len(result.Report.Records) != 2 {
		t.Fatalf("expected 2 report records, got %+v", result.Report)
	}
	first := result.Report.Records[0]
	if first.Description != "Pagamento Fornecedor" || first.Kind != models.Outflow {
		t.Errorf("unexpected first record: %+v", first)
	}
	if !result.Report.InitialBalance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected initial balance 100, got %s", result.Report.InitialBalance)
	}
	if !strings.Contains(result.CSV, "Pagamento Fornecedor") {
		t.Error("expected CSV to contain the record")
	}
}

func TestParseEndpointRequiresText(t *testing.T) {
	resp := postJSON(t, setupTestApp(2024), `{"sourceId":"x"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	if result := decode(t, resp); result.Success || result.Error == "" {
		t.Errorf("expected error response, got %+v", result)
	}
}

func TestParseEndpointRequiresYear(t *testing.T) {
	app := setupTestApp(0)

	resp := postJSON(t, app, `{"text":"01/03\nPIX\n10,00C"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400 without a year, got %d", resp.StatusCode)
	}

	resp = postJSON(t, app, `{"text":"01/03\nPIX\n10,00C","defaultYear":2023}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 with an explicit year, got %d", resp.StatusCode)
	}
	result := decode(t, resp)
	if got := result.Statement.Records[0].Date.Year(); got != 2023 {
		t.Errorf("expected year 2023, got %d", got)
	}
}

func TestParseEndpointInvalidInitialBalance(t *testing.T) {
	resp := postJSON(t, setupTestApp(2024), `{"text":"01/03\nPIX\n10,00C","initialBalance":"abc"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestConvertEndpointRequiresFile(t *testing.T) {
	app := setupTestApp(2024)

	req := httptest.NewRequest("POST", "/api/convert", nil)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=----test")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode == fiber.StatusOK {
		t.Error("expected non-200 for missing file")
	}
}

func TestConvertEndpoint(t *testing.T) {
	app := setupTestApp(2024)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "marco.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte(statementText))
	mw.WriteField("initialBalance", "0")
	mw.Close()

	req := httptest.NewRequest("POST", "/api/convert", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	result := decode(t, resp)
	if !result.Success || result.BatchID == "" {
		t.Fatalf("expected successful batch, got %+v", result)
	}
	if len(result.Documents) != 1 || result.Documents[0].Path != "marco.txt" {
		t.Errorf("unexpected documents: %+v", result.Documents)
	}
	if len(result.Report.Records) != 2 {
		t.Errorf("expected 2 records, got %d", len(result.Report.Records))
	}
}

func TestConvertEndpointUnsupportedFile(t *testing.T) {
	app := setupTestApp(2024)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "extrato.ofx")
	part.Write([]byte("x"))
	mw.Close()

	req := httptest.NewRequest("POST", "/api/convert", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}
