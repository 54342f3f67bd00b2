package api

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/bank-statement-analyzer/internal/extractor"
	"github.com/insightdelivered/bank-statement-analyzer/internal/ingest"
	"github.com/insightdelivered/bank-statement-analyzer/internal/logger"
	"github.com/insightdelivered/bank-statement-analyzer/internal/models"
	"github.com/insightdelivered/bank-statement-analyzer/internal/normalize"
	"github.com/insightdelivered/bank-statement-analyzer/internal/parser"
	"github.com/insightdelivered/bank-statement-analyzer/internal/report"
	"github.com/insightdelivered/bank-statement-analyzer/internal/writer"
)

// Version is reported by the health endpoint.
const Version = "2.0.0"

// ParseRequest is the JSON body of /api/parse.
type ParseRequest struct {
	SourceID       string `json:"sourceId"`
	Text           string `json:"text"`
	DefaultYear    int    `json:"defaultYear,omitempty"`
	InitialBalance string `json:"initialBalance,omitempty"`
}

// ParseResponse is the JSON response of /api/parse and /api/convert.
type ParseResponse struct {
	Success   bool                    `json:"success"`
	Error     string                  `json:"error,omitempty"`
	BatchID   string                  `json:"batchId,omitempty"`
	Statement *models.Statement       `json:"statement,omitempty"`
	Documents []ingest.DocumentResult `json:"documents,omitempty"`
	Report    *report.Report          `json:"report,omitempty"`
	Stats     models.ParseStats       `json:"stats"`
	CSV       string                  `json:"csv,omitempty"`
	Version   string                  `json:"version,omitempty"`
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	DefaultYear    int
	InitialBalance decimal.Decimal
	Locale         normalize.Locale
	Mapping        *extractor.ColumnMapping
	Classifier     *report.Classifier
	Workers        int
	Log            zerolog.Logger
}

// NewApp returns a fiber app with the API routes registered.
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "statement-analyzer",
		BodyLimit:             32 << 20,
		DisableStartupMessage: true,
	})
	app.Use(fiberrecover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "POST, GET, OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/health", h.handleHealth)
	api.Post("/parse", h.handleParse)
	api.Post("/convert", h.handleConvert)
}

func (h *Handler) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"engine":  "fiber",
		"version": Version,
	})
}

func (h *Handler) handleParse(c *fiber.Ctx) error {
	var req ParseRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
	}
	if strings.TrimSpace(req.Text) == "" {
		return writeError(c, fiber.StatusBadRequest, "Field 'text' is required.")
	}
	year := h.year(req.DefaultYear)
	if year <= 0 {
		return writeError(c, fiber.StatusBadRequest, "Field 'defaultYear' is required.")
	}
	initial, err := h.initial(req.InitialBalance)
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, err.Error())
	}
	sourceID := req.SourceID
	if sourceID == "" {
		sourceID = "request"
	}

	st, err := h.parser(year).Parse(sourceID, req.Text)
	if err != nil {
		return writeError(c, fiber.StatusUnprocessableEntity, fmt.Sprintf("Parsing failed: %v", err))
	}
	rep := h.classifier().ClassifyAndAggregate(st.Records, initial)

	csv, err := renderCSV(rep, writer.Meta{Sources: []string{sourceID}})
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, err.Error())
	}

	h.Log.Info().Str("source", sourceID).Int("transactions", st.Stats.Recognized).
		Int("dropped", st.Stats.Dropped()).Msg("parsed request")

	return c.JSON(ParseResponse{
		Success:   true,
		Statement: st,
		Report:    rep,
		Stats:     st.Stats,
		CSV:       csv,
		Version:   Version,
	})
}

// handleConvert accepts uploaded statements in form field "file" and runs
// them through the same pipeline as the CLI.
func (h *Handler) handleConvert(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, fmt.Sprintf("Failed to parse form: %v", err))
	}
	files := form.File["file"]
	if len(files) == 0 {
		return writeError(c, fiber.StatusBadRequest, "No file uploaded. Use form field 'file'.")
	}

	yearValue := 0
	if v := c.FormValue("defaultYear"); v != "" {
		if yearValue, err = strconv.Atoi(v); err != nil {
			return writeError(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid defaultYear %q.", v))
		}
	}
	year := h.year(yearValue)
	if year <= 0 {
		return writeError(c, fiber.StatusBadRequest, "Field 'defaultYear' is required.")
	}
	initial, err := h.initial(c.FormValue("initialBalance"))
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, err.Error())
	}

	dir, err := os.MkdirTemp("", "statement-upload-*")
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, "Failed to create temp dir.")
	}
	defer os.RemoveAll(dir)

	paths := make([]string, 0, len(files))
	names := make(map[string]string, len(files))
	for i, fh := range files {
		name := filepath.Base(fh.Filename)
		if _, err := extractor.Detect(name); err != nil {
			return writeError(c, fiber.StatusBadRequest, err.Error())
		}
		sub := filepath.Join(dir, strconv.Itoa(i))
		if err := os.Mkdir(sub, 0o700); err != nil {
			return writeError(c, fiber.StatusInternalServerError, "Failed to save uploaded file.")
		}
		path := filepath.Join(sub, name)
		if err := c.SaveFile(fh, path); err != nil {
			return writeError(c, fiber.StatusInternalServerError, "Failed to save uploaded file.")
		}
		paths = append(paths, path)
		names[path] = name
	}

	in := &ingest.Ingester{
		Parser:  h.parser(year),
		Workers: h.Workers,
	}
	if h.Mapping != nil {
		in.Sheets = &extractor.SheetReader{Mapping: h.Mapping, Locale: h.locale()}
	}
	batch, err := in.Run(logger.WithContext(c.UserContext(), h.Log), paths)
	if err != nil {
		if errors.Is(err, parser.ErrMissingDefaultYear) {
			return writeError(c, fiber.StatusBadRequest, err.Error())
		}
		return writeError(c, fiber.StatusInternalServerError, err.Error())
	}
	for i := range batch.Documents {
		batch.Documents[i].Path = names[batch.Documents[i].Path]
	}

	statements := batch.Statements()
	rep := h.classifier().ClassifyAndAggregate(report.Merge(statements...), initial)

	sources := make([]string, 0, len(statements))
	for _, st := range statements {
		sources = append(sources, st.SourceID)
	}
	csv, err := renderCSV(rep, writer.Meta{BatchID: batch.ID, Sources: sources})
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(ParseResponse{
		Success:   batch.Summary.DocumentsProcessed > 0,
		BatchID:   batch.ID,
		Documents: batch.Documents,
		Report:    rep,
		Stats:     batch.Summary.Stats,
		CSV:       csv,
		Version:   Version,
	})
}

func (h *Handler) year(requested int) int {
	if requested > 0 {
		return requested
	}
	return h.DefaultYear
}

func (h *Handler) initial(v string) (decimal.Decimal, error) {
	if strings.TrimSpace(v) == "" {
		return h.InitialBalance, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid initialBalance %q", v)
	}
	return d, nil
}

func (h *Handler) locale() normalize.Locale {
	if h.Locale.DecimalSeparator == "" {
		return normalize.BrazilianLocale()
	}
	return h.Locale
}

func (h *Handler) parser(year int) *parser.Parser {
	return parser.New(year, parser.WithLocale(h.locale()), parser.WithLogger(h.Log))
}

func (h *Handler) classifier() *report.Classifier {
	if h.Classifier == nil {
		return report.NewClassifier()
	}
	return h.Classifier
}

func renderCSV(rep *report.Report, meta writer.Meta) (string, error) {
	var buf bytes.Buffer
	w := &writer.CSVWriter{IncludeHeader: true}
	if err := w.Write(&buf, rep, meta); err != nil {
		return "", fmt.Errorf("CSV generation failed: %w", err)
	}
	return buf.String(), nil
}

func writeError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ParseResponse{
		Success: false,
		Error:   msg,
	})
}
