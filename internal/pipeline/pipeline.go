// Package pipeline wires the processing stages end to end: rasterize,
// classify, extract, consolidate, map. Data flows strictly forward and every
// failure below the document level degrades the output instead of aborting
// the run.
package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerlens/statement-extractor/constants"
	"github.com/ledgerlens/statement-extractor/internal/classify"
	"github.com/ledgerlens/statement-extractor/internal/common"
	"github.com/ledgerlens/statement-extractor/internal/consolidate"
	"github.com/ledgerlens/statement-extractor/internal/entity"
	"github.com/ledgerlens/statement-extractor/internal/extract"
	"github.com/ledgerlens/statement-extractor/internal/metrics"
	"github.com/ledgerlens/statement-extractor/internal/template"
	"github.com/ledgerlens/statement-extractor/internal/work"
)

// Config holds run-level knobs. RunTimeout bounds the whole run; extraction
// calls still in flight when it fires are abandoned and the run consolidates
// whatever completed.
type Config struct {
	ClassifyWorkers int
	RunTimeout      time.Duration
}

// Rasterizer converts uploaded document bytes into a paged document.
// Satisfied by raster.Service.
type Rasterizer interface {
	Rasterize(ctx context.Context, data []byte, contentType string) (*entity.Document, error)
}

// Pipeline coordinates one document run. All stage dependencies are
// constructed once and shared across runs; per-run state lives entirely in
// the entities flowing through Run.
type Pipeline struct {
	Logger       *slog.Logger
	Cfg          Config
	Raster       Rasterizer
	Classifier   classify.Config
	Orchestrator *extract.Orchestrator
	Consolidator *consolidate.Service
	Mapper       *template.Mapper
	Recorder     *metrics.Recorder
}

func New(
	logger *slog.Logger,
	cfg Config,
	rasterizer Rasterizer,
	classifier classify.Config,
	orchestrator *extract.Orchestrator,
	consolidator *consolidate.Service,
	mapper *template.Mapper,
	recorder *metrics.Recorder,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ClassifyWorkers <= 0 {
		cfg.ClassifyWorkers = 8
	}
	return &Pipeline{
		Logger:       logger,
		Cfg:          cfg,
		Raster:       rasterizer,
		Classifier:   classifier,
		Orchestrator: orchestrator,
		Consolidator: consolidator,
		Mapper:       mapper,
		Recorder:     recorder,
	}
}

// Run processes one uploaded document and always returns a report. The error
// is non-nil only for fatal failures (unreadable document); everything else
// is carried inside the report as degraded output plus error entries.
func (p *Pipeline) Run(ctx context.Context, data []byte, contentType string) (*entity.RunReport, error) {
	start := time.Now()
	runID := uuid.New()
	ctx = common.WithRunID(ctx, runID.String())
	if p.Cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Cfg.RunTimeout)
		defer cancel()
	}

	report := &entity.RunReport{
		RunID:     runID,
		StartedAt: start.UTC(),
	}

	p.Logger.Info("pipeline.start",
		"run_id", runID.String(),
		"bytes", len(data),
		"content_type", contentType,
	)

	doc, err := p.Raster.Rasterize(ctx, data, contentType)
	if err != nil {
		report.Success = false
		report.Status = constants.RunStatusFailed
		report.DurationMS = time.Since(start).Milliseconds()
		report.Errors = append(report.Errors, entity.ReportError{
			Stage:   "raster",
			Code:    common.ErrorCode(err),
			Message: err.Error(),
		})
		p.Recorder.RecordRun(string(constants.RunStatusFailed), time.Since(start))
		p.Logger.Error("pipeline.raster.failed", "run_id", runID.String(), "err", err)
		return report, err
	}
	report.Format = doc.Format
	report.PageCount = doc.PageCount

	p.classifyPages(ctx, doc)
	doc.DetectedYears = detectDocumentYears(doc)
	p.Logger.Info("pipeline.classify.ok",
		"run_id", runID.String(),
		"pages", len(doc.Pages),
		"classified", countClassified(doc),
		"years", doc.DetectedYears,
	)

	records, outcomes := p.Orchestrator.Run(ctx, doc)
	statements, labelErrs := p.Consolidator.Consolidate(records, expectedLabels(doc))
	record, rowErrs := p.Mapper.MapToTemplate(runID, statements, nil)

	report.Record = record
	report.Years = record.Years
	report.Populated = record.PopulatedRows()
	report.Pages = pageSummaries(doc, outcomes)
	report.Errors = reportErrors(outcomes, labelErrs, rowErrs)
	if len(report.Errors) == 0 {
		report.Status = constants.RunStatusSucceeded
	} else {
		report.Status = constants.RunStatusPartial
	}
	report.Success = true
	report.DurationMS = time.Since(start).Milliseconds()

	p.Recorder.RecordRun(string(report.Status), time.Since(start))
	p.Logger.Info("pipeline.done",
		"run_id", runID.String(),
		"status", report.Status,
		"pages", report.PageCount,
		"records", len(records),
		"populated", report.Populated,
		"errors", len(report.Errors),
		"elapsed_ms", report.DurationMS,
	)
	return report, nil
}

// classifyPages labels every page concurrently. Classification is a pure
// function over the page text, so the fan-out shares nothing but the pool.
func (p *Pipeline) classifyPages(ctx context.Context, doc *entity.Document) {
	results := work.Map(ctx, doc.Pages, p.Cfg.ClassifyWorkers,
		func(_ context.Context, _ int, page *entity.Page) (classify.Result, error) {
			return classify.Classify(page.TextProxy, p.Classifier), nil
		})
	for _, res := range results {
		page := doc.Pages[res.Index]
		if res.Err != nil {
			page.Label = constants.Unclassified
			continue
		}
		page.Label = res.Value.Label
		page.LabelScore = res.Value.Score
		p.Recorder.RecordClassification(string(page.Label))
	}
}

// detectDocumentYears unions the fiscal years found on statement-labeled
// pages, most-recent-first. Narrative pages are excluded so their incidental
// year mentions do not widen the extraction hints.
func detectDocumentYears(doc *entity.Document) []int {
	seen := make(map[int]struct{})
	var years []int
	for _, page := range doc.Pages {
		if page.Label == constants.Unclassified {
			continue
		}
		for _, y := range classify.DetectYears(page.TextProxy) {
			if _, ok := seen[y]; ok {
				continue
			}
			seen[y] = struct{}{}
			years = append(years, y)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

func countClassified(doc *entity.Document) int {
	n := 0
	for _, page := range doc.Pages {
		if page.Label != constants.Unclassified {
			n++
		}
	}
	return n
}

// expectedLabels lists the distinct statement labels classification assigned,
// in first-seen page order. Consolidation reports a label error for any of
// these that ends up with no extraction records.
func expectedLabels(doc *entity.Document) []constants.StatementType {
	seen := make(map[constants.StatementType]struct{})
	var labels []constants.StatementType
	for _, page := range doc.Pages {
		if page.Label == constants.Unclassified {
			continue
		}
		if _, ok := seen[page.Label]; ok {
			continue
		}
		seen[page.Label] = struct{}{}
		labels = append(labels, page.Label)
	}
	return labels
}

func pageSummaries(doc *entity.Document, outcomes []extract.PageOutcome) []entity.PageSummary {
	scores := make(map[int]float64, len(doc.Pages))
	for _, page := range doc.Pages {
		scores[page.Index] = page.LabelScore
	}
	summaries := make([]entity.PageSummary, 0, len(outcomes))
	for _, o := range outcomes {
		s := entity.PageSummary{
			Index:      o.PageIndex,
			Label:      o.Label,
			LabelScore: scores[o.PageIndex],
			Status:     o.Status,
			Attempts:   o.Attempts,
		}
		if o.Err != nil {
			s.Error = o.Err.Error()
		}
		summaries = append(summaries, s)
	}
	return summaries
}

func reportErrors(outcomes []extract.PageOutcome, labelErrs []consolidate.LabelError, rowErrs []template.RowError) []entity.ReportError {
	var errs []entity.ReportError
	for _, o := range outcomes {
		if o.Status != constants.PageStatusFailed {
			continue
		}
		errs = append(errs, entity.ReportError{
			Stage:     "extract",
			Code:      errorCodeOr(o.Err, common.CodeExtractionFailed),
			PageIndex: o.PageIndex,
			Message:   o.Err.Error(),
		})
	}
	for _, le := range labelErrs {
		errs = append(errs, entity.ReportError{
			Stage:   "consolidate",
			Code:    errorCodeOr(le.Err, common.CodeConsolidationFailed),
			Label:   string(le.Label),
			Message: le.Err.Error(),
		})
	}
	for _, re := range rowErrs {
		errs = append(errs, entity.ReportError{
			Stage:   "template",
			Code:    errorCodeOr(re.Err, common.CodeTemplateMappingFailed),
			Field:   re.Field,
			Message: re.Err.Error(),
		})
	}
	return errs
}

func errorCodeOr(err error, fallback string) string {
	if code := common.ErrorCode(err); code != "" {
		return code
	}
	return fallback
}
