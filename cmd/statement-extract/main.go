package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledgerlens/statement-extractor/constants"
	"github.com/ledgerlens/statement-extractor/internal/classify"
	"github.com/ledgerlens/statement-extractor/internal/common"
	"github.com/ledgerlens/statement-extractor/internal/consolidate"
	"github.com/ledgerlens/statement-extractor/internal/entity"
	"github.com/ledgerlens/statement-extractor/internal/export"
	"github.com/ledgerlens/statement-extractor/internal/extract"
	"github.com/ledgerlens/statement-extractor/internal/llm"
	"github.com/ledgerlens/statement-extractor/internal/llm/openai"
	"github.com/ledgerlens/statement-extractor/internal/llm/vertex"
	"github.com/ledgerlens/statement-extractor/internal/metrics"
	"github.com/ledgerlens/statement-extractor/internal/pipeline"
	"github.com/ledgerlens/statement-extractor/internal/raster"
	"github.com/ledgerlens/statement-extractor/internal/template"
	"github.com/ledgerlens/statement-extractor/internal/work"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	// Parse CLI flags
	var (
		in          = flag.String("in", "", "input document path (required)")
		out         = flag.String("out", "", "output directory (optional, defaults to the input's directory)")
		formats     = flag.String("formats", "csv,json", "comma-separated outputs: csv,xlsx,json")
		templPath   = flag.String("template", "", "template schema JSON path (optional, overrides the embedded default)")
		backend     = flag.String("backend", "", "inference backend: openai or vertex (overrides LLM_BACKEND)")
		workers     = flag.Int("workers", 0, "extraction workers (overrides EXTRACT_WORKERS)")
		timeoutFlag = flag.Duration("timeout", 0, "run timeout, e.g. 5m (overrides RUN_TIMEOUT)")
	)
	flag.Parse()

	// Validate required flags
	if *in == "" {
		printError("Error: --in is required\n")
		os.Exit(1)
	}
	ext := constants.NormalizeExt(filepath.Ext(*in))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		printError("Error: unsupported input extension %q\n", ext)
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Dir(*in)
	}

	// Setup logger. Logs go to stderr so stdout stays clean for the summary.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	// Load configuration, with flags overriding the environment
	cfg := common.LoadConfig()
	if *backend != "" {
		cfg.LLM.Backend = *backend
	}
	if *workers > 0 {
		cfg.Pipeline.ExtractWorkers = *workers
	}
	if *timeoutFlag > 0 {
		cfg.Pipeline.RunTimeout = *timeoutFlag
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	model, cleanup, err := buildModel(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize inference backend", "backend", cfg.LLM.Backend, "error", err)
		os.Exit(1)
	}
	defer cleanup()

	mapper, err := buildMapper(*templPath, logger)
	if err != nil {
		logger.Error("failed to load template schema", "path", *templPath, "error", err)
		os.Exit(1)
	}

	recorder := metrics.NewRecorder(cfg.LLM.Backend)
	p := pipeline.New(
		logger,
		pipeline.Config{
			ClassifyWorkers: cfg.Pipeline.ClassifyWorkers,
			RunTimeout:      cfg.Pipeline.RunTimeout,
		},
		raster.NewService(logger),
		classifierConfig(cfg),
		extract.NewOrchestrator(model, extractConfig(cfg), logger, recorder),
		consolidate.NewService(nil, logger),
		mapper,
		recorder,
	)

	data, err := os.ReadFile(*in)
	if err != nil {
		logger.Error("failed to read input document", "path", *in, "error", err)
		os.Exit(1)
	}
	contentType := constants.ImageMIMEType(ext)
	if constants.MapExtToFormat(ext) == constants.FormatPDF {
		contentType = constants.MIMETypePDF
	}

	logger.Info("starting run", "input", *in, "bytes", len(data), "backend", cfg.LLM.Backend)
	report, runErr := p.Run(ctx, data, contentType)

	base := strings.TrimSuffix(filepath.Base(*in), filepath.Ext(*in))
	written, err := writeOutputs(*out, base, *formats, report, logger)
	if err != nil {
		logger.Error("failed to write outputs", "error", err)
		os.Exit(1)
	}

	if runErr != nil {
		logger.Error("run failed", "run_id", report.RunID, "error", runErr)
		printError("Run failed: %v\n", runErr)
		os.Exit(1)
	}

	// Log summary
	fmt.Printf("Extraction complete!\n")
	fmt.Printf("- Run ID: %s\n", report.RunID)
	fmt.Printf("- Status: %s\n", report.Status)
	fmt.Printf("- Pages: %d\n", report.PageCount)
	fmt.Printf("- Years: %v\n", report.Years)
	fmt.Printf("- Populated fields: %d\n", report.Populated)
	if len(report.Errors) > 0 {
		fmt.Printf("- Degraded stages: %d error(s), see report\n", len(report.Errors))
	}
	for _, path := range written {
		fmt.Printf("- Output: %s\n", path)
	}
}

func buildModel(ctx context.Context, cfg *common.Config, logger *slog.Logger) (llm.StatementExtractor, func(), error) {
	switch cfg.LLM.Backend {
	case "vertex":
		client, err := vertex.NewClient(ctx, vertex.Config{
			ProjectID:   cfg.Vertex.ProjectID,
			Region:      cfg.Vertex.Region,
			Model:       cfg.Vertex.Model,
			Temperature: cfg.LLM.Temperature,
		}, logger)
		if err != nil {
			return nil, func() {}, err
		}
		return client, func() { _ = client.Close() }, nil
	default:
		client := openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
		return client, func() {}, nil
	}
}

func buildMapper(path string, logger *slog.Logger) (*template.Mapper, error) {
	if path == "" {
		return template.NewMapper(nil, logger)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	schema, err := template.LoadSchema(data)
	if err != nil {
		return nil, err
	}
	return template.NewMapper(schema, logger)
}

func classifierConfig(cfg *common.Config) classify.Config {
	c := classify.DefaultConfig()
	c.Threshold = cfg.Classifier.Threshold
	c.Epsilon = cfg.Classifier.Epsilon
	c.PhraseWeight = cfg.Classifier.PhraseWeight
	c.DensityWeight = cfg.Classifier.DensityWeight
	return c
}

func extractConfig(cfg *common.Config) extract.Config {
	c := extract.DefaultConfig()
	c.Workers = cfg.Pipeline.ExtractWorkers
	c.ExtractUnscored = cfg.Pipeline.ExtractUnscored
	c.Retry = work.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
	}
	return c
}

// writeOutputs serializes the requested formats into dir. The report JSON is
// written even for failed runs so the error taxonomy survives on disk.
func writeOutputs(dir, base, formats string, report *entity.RunReport, logger *slog.Logger) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	exporter := export.NewService(logger)
	var written []string
	for _, format := range strings.Split(formats, ",") {
		format = strings.TrimSpace(strings.ToLower(format))
		var (
			data []byte
			err  error
			name string
		)
		switch format {
		case "":
			continue
		case "json":
			data, err = json.MarshalIndent(report, "", "  ")
			name = base + ".report.json"
		case "csv":
			if report.Record == nil {
				logger.Warn("skipping csv output, no template record", "status", report.Status)
				continue
			}
			data, err = exporter.CSV(report.Record)
			name = base + ".csv"
		case "xlsx":
			if report.Record == nil {
				logger.Warn("skipping xlsx output, no template record", "status", report.Status)
				continue
			}
			data, err = exporter.XLSX(report.Record)
			name = base + ".xlsx"
		default:
			return nil, fmt.Errorf("unknown output format %q", format)
		}
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, err
		}
		written = append(written, path)
	}
	return written, nil
}
