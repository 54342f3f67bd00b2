package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/insightdelivered/bank-statement-analyzer/internal/api"
	"github.com/insightdelivered/bank-statement-analyzer/internal/config"
	"github.com/insightdelivered/bank-statement-analyzer/internal/extractor"
	"github.com/insightdelivered/bank-statement-analyzer/internal/ingest"
	"github.com/insightdelivered/bank-statement-analyzer/internal/logger"
	"github.com/insightdelivered/bank-statement-analyzer/internal/parser"
	"github.com/insightdelivered/bank-statement-analyzer/internal/report"
	"github.com/insightdelivered/bank-statement-analyzer/internal/writer"
)

var (
	cfgFile string
	v       = viper.New()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "statement-analyzer",
	Short: "Parse and analyze bank statement transactions",
	Long: `Statement Analyzer reconstructs transactions from bank statement text, PDFs
and xlsx exports, labels them as inflows, outflows or balance checkpoints, and
reports running balances, monthly closing balances and spending categories.`,
	SilenceUsage: true,
}

var parseCmd = &cobra.Command{
	Use:   "parse <file> [file...]",
	Short: "Parse statements and write the labeled records as CSV",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runParse,
}

var reportCmd = &cobra.Command{
	Use:   "report <file> [file...]",
	Short: "Print monthly closing balances and the outflow category breakdown",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReport,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (TOML)")
	pf.Int("year", 0, "default year for dates written without one")
	pf.String("initial-balance", "", "balance before the first record")
	pf.Int("workers", 0, "documents processed concurrently")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	bindFlag("default_year", pf.Lookup("year"))
	bindFlag("initial_balance", pf.Lookup("initial-balance"))
	bindFlag("workers", pf.Lookup("workers"))
	bindFlag("log_level", pf.Lookup("log-level"))

	parseCmd.Flags().StringP("output", "o", "transactions.csv", `output CSV path, "-" for stdout`)
	parseCmd.Flags().Bool("header", true, "include # metadata rows in the CSV")

	reportCmd.Flags().Bool("json", false, "print the full report as JSON")

	serveCmd.Flags().String("addr", "", "listen address")
	bindFlag("server.addr", serveCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(parseCmd, reportCmd, serveCmd)
}

func bindFlag(key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

// pipeline is everything a command needs, built from the loaded config.
type pipeline struct {
	cfg        *config.Config
	log        zerolog.Logger
	initial    decimal.Decimal
	classifier *report.Classifier
	mapping    *extractor.ColumnMapping
}

func newPipeline(requireYear bool) (*pipeline, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		if !errors.Is(err, config.ErrMissingDefaultYear) {
			return nil, err
		}
		if requireYear {
			return nil, fmt.Errorf("%w: pass --year or set default_year", err)
		}
	}

	initial, _ := cfg.Initial()
	threshold, _ := cfg.Threshold()
	mapping, err := extractor.NewColumnMapping(cfg.Spreadsheet.Columns, cfg.Spreadsheet.FallbackDescriptionColumn)
	if err != nil {
		return nil, fmt.Errorf("invalid spreadsheet columns: %w", err)
	}

	return &pipeline{
		cfg:     cfg,
		log:     logger.New(cfg.LogLevel),
		initial: initial,
		classifier: &report.Classifier{
			BalanceKeywords:   cfg.BalanceKeywords,
			BalanceTypeTags:   cfg.BalanceTypeTags,
			CategoryThreshold: threshold,
		},
		mapping: mapping,
	}, nil
}

func (p *pipeline) run(ctx context.Context, paths []string) (*ingest.Batch, *report.Report, error) {
	in := &ingest.Ingester{
		Parser:  parser.New(p.cfg.DefaultYear, parser.WithLocale(p.cfg.Locale), parser.WithLogger(p.log)),
		Sheets:  &extractor.SheetReader{Mapping: p.mapping, Locale: p.cfg.Locale},
		Workers: p.cfg.Workers,
	}
	batch, err := in.Run(logger.WithContext(ctx, p.log), paths)
	if err != nil {
		return nil, nil, err
	}
	rep := p.classifier.ClassifyAndAggregate(report.Merge(batch.Statements()...), p.initial)
	return batch, rep, nil
}

func runParse(cmd *cobra.Command, args []string) error {
	p, err := newPipeline(true)
	if err != nil {
		return err
	}
	batch, rep, err := p.run(cmd.Context(), args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	output, _ := cmd.Flags().GetString("output")
	includeHeader, _ := cmd.Flags().GetBool("header")

	var sources []string
	for _, st := range batch.Statements() {
		sources = append(sources, st.SourceID)
	}
	w := &writer.CSVWriter{IncludeHeader: includeHeader}
	meta := writer.Meta{BatchID: batch.ID, Sources: sources}
	if output == "-" {
		return w.Write(out, rep, meta)
	}

	printDocuments(out, batch)
	if batch.Summary.DocumentsProcessed == 0 {
		return fmt.Errorf("no document could be parsed")
	}
	if err := w.WriteToFile(output, rep, meta); err != nil {
		return fmt.Errorf("CSV write failed: %w", err)
	}
	fmt.Fprintf(out, "Output: %s (%d records)\n", output, len(rep.Records))
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	p, err := newPipeline(true)
	if err != nil {
		return err
	}
	batch, rep, err := p.run(cmd.Context(), args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Summary ingest.Summary `json:"summary"`
			*report.Report
		}{batch.Summary, rep})
	}

	printDocuments(out, batch)
	printReport(out, rep)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	p, err := newPipeline(false)
	if err != nil {
		return err
	}

	app := api.NewApp(&api.Handler{
		DefaultYear:    p.cfg.DefaultYear,
		InitialBalance: p.initial,
		Locale:         p.cfg.Locale,
		Mapping:        p.mapping,
		Classifier:     p.classifier,
		Workers:        p.cfg.Workers,
		Log:            p.log,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		p.log.Info().Str("addr", p.cfg.Server.Addr).Str("version", api.Version).Msg("listening")
		errCh <- app.Listen(p.cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.log.Info().Msg("shutting down")
	return app.ShutdownWithContext(shutdownCtx)
}

func printDocuments(out io.Writer, batch *ingest.Batch) {
	for _, d := range batch.Documents {
		if d.Err != nil {
			fmt.Fprintf(out, "%s: failed: %v\n", d.SourceID, d.Err)
			continue
		}
		st := d.Statement.Stats
		fmt.Fprintf(out, "%s: %d transaction(s), %d span(s) dropped\n", d.SourceID, st.Recognized, st.Dropped())
	}
	s := batch.Summary
	fmt.Fprintf(out, "Batch %s: %d document(s), %d failed, %d transaction(s), %d dropped\n",
		batch.ID, s.DocumentsProcessed, s.DocumentsFailed, s.TransactionsRecognized, s.SpansDropped)
}

func printReport(out io.Writer, rep *report.Report) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\nMonth\tClosing\tSource\tInflow\tOutflow\tRecords\t")
	for _, m := range rep.Monthly {
		source := "running"
		if m.FromCheckpoint {
			source = "checkpoint"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t\n",
			m.Month, m.Closing.StringFixed(2), source, m.Inflow.StringFixed(2), m.Outflow.StringFixed(2), m.Count)
	}
	tw.Flush()

	fmt.Fprintf(out, "\nTotal inflow: %s  Total outflow: %s  Final balance: %s\n",
		rep.TotalInflow.StringFixed(2), rep.TotalOutflow.StringFixed(2), rep.FinalBalance.StringFixed(2))

	if len(rep.Categories) == 0 {
		return
	}
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nCategory\tTotal\tShare\tCount")
	for _, c := range rep.Categories {
		fmt.Fprintf(tw, "%s\t%s\t%s%%\t%d\n",
			c.Description, c.Total.StringFixed(2), c.Share.Mul(decimal.NewFromInt(100)).StringFixed(1), c.Count)
	}
	tw.Flush()
}
