// Package extract fans page artifacts out to the inference backend with
// bounded concurrency and bounded retries, isolating each page's outcome.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/ledgerlens/statement-extractor/constants"
	"github.com/ledgerlens/statement-extractor/internal/common"
	"github.com/ledgerlens/statement-extractor/internal/entity"
	"github.com/ledgerlens/statement-extractor/internal/llm"
	"github.com/ledgerlens/statement-extractor/internal/metrics"
	"github.com/ledgerlens/statement-extractor/internal/work"
)

// PageOutcome is one page's extraction result for the run report. Err is set
// only for PageStatusFailed.
type PageOutcome struct {
	PageIndex int
	Label     constants.StatementType
	Status    constants.PageStatus
	Attempts  int
	Err       error
}

// Config bounds the fan-out and the per-page retry loop.
type Config struct {
	// Workers caps concurrent inference calls. Kept low relative to the
	// classifier stage: the backend's rate limit is the scarce resource.
	Workers int

	// AttemptTimeout bounds a single inference call. The run-level deadline
	// lives on the parent context; a per-attempt timeout while the run is
	// still alive is transient and retried.
	AttemptTimeout time.Duration

	Retry work.RetryPolicy

	// ExtractUnscored sends pages the classifier could not score (scanned
	// pages with no text layer) to the backend with the statement type left
	// for the model to identify. Pages that scored below threshold are
	// always skipped regardless.
	ExtractUnscored bool
}

func DefaultConfig() Config {
	return Config{
		Workers:         4,
		AttemptTimeout:  90 * time.Second,
		Retry:           work.DefaultRetryPolicy(),
		ExtractUnscored: true,
	}
}

// Orchestrator drives per-page extraction against one inference backend.
type Orchestrator struct {
	model    llm.StatementExtractor
	cfg      Config
	logger   *slog.Logger
	recorder *metrics.Recorder
}

func NewOrchestrator(model llm.StatementExtractor, cfg Config, logger *slog.Logger, recorder *metrics.Recorder) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	return &Orchestrator{model: model, cfg: cfg, logger: logger, recorder: recorder}
}

// Run extracts every eligible page of the document concurrently and returns
// the records that succeeded plus one outcome per page, ordered by page
// index. A canceled ctx stops scheduling; pages already in flight surface
// whatever they reached, everything else reports FAILED. Run itself never
// returns an error: partial output plus per-page outcomes is the contract.
func (o *Orchestrator) Run(ctx context.Context, doc *entity.Document) ([]entity.ExtractionRecord, []PageOutcome) {
	start := time.Now()

	var eligible []*entity.Page
	var skipped []PageOutcome
	for _, page := range doc.Pages {
		if o.eligible(page) {
			eligible = append(eligible, page)
		} else {
			skipped = append(skipped, PageOutcome{
				PageIndex: page.Index,
				Label:     page.Label,
				Status:    constants.PageStatusSkipped,
			})
		}
	}

	o.logger.Info("extract.start",
		"pages", len(doc.Pages),
		"eligible", len(eligible),
		"skipped", len(skipped),
		"workers", o.cfg.Workers,
		"year_hints", doc.DetectedYears,
	)

	results := work.Map(ctx, eligible, o.cfg.Workers, func(ctx context.Context, _ int, page *entity.Page) (pageResult, error) {
		return o.extractPage(ctx, page, doc.DetectedYears)
	})

	records := make([]entity.ExtractionRecord, 0, len(eligible))
	outcomes := append([]PageOutcome(nil), skipped...)
	for i, res := range results {
		page := eligible[i]
		outcome := PageOutcome{
			PageIndex: page.Index,
			Label:     page.Label,
			Attempts:  res.Value.attempts,
		}
		err := res.Err
		if err == nil {
			err = res.Value.err
		}
		switch {
		case err == nil:
			outcome.Status = constants.PageStatusExtracted
			outcome.Label = res.Value.record.Label
			records = append(records, res.Value.record)
		case errors.Is(err, common.ErrNoData):
			outcome.Status = constants.PageStatusNoData
		default:
			outcome.Status = constants.PageStatusFailed
			outcome.Err = common.NewAppError(common.CodeExtractionFailed,
				fmt.Sprintf("page %d", page.Index), err)
		}
		o.recorder.RecordPageOutcome(string(outcome.Status))
		outcomes = append(outcomes, outcome)
	}

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].PageIndex < outcomes[j].PageIndex })
	sort.Slice(records, func(i, j int) bool { return records[i].PageIndex < records[j].PageIndex })

	o.logger.Info("extract.done",
		"records", len(records),
		"outcomes", len(outcomes),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return records, outcomes
}

// eligible applies the cost-control gate: pages the classifier rejected stay
// out, pages it could not score go through only under the unscored policy.
func (o *Orchestrator) eligible(page *entity.Page) bool {
	if page.Label != constants.Unclassified {
		return true
	}
	return o.cfg.ExtractUnscored && !page.HasText()
}

type pageResult struct {
	record   entity.ExtractionRecord
	attempts int
	err      error
}

func (o *Orchestrator) extractPage(ctx context.Context, page *entity.Page, yearHints []int) (pageResult, error) {
	start := time.Now()
	req := llm.ExtractRequest{
		PageIndex:    page.Index,
		Label:        page.Label,
		Artifact:     page.Artifact,
		MIMEType:     page.MIMEType,
		YearHints:    yearHints,
		AllowedTypes: constants.StatementTypesAsStrings(),
	}

	payload, attempts, err := work.Retry(ctx, o.cfg.Retry, llm.IsRetryable,
		func(ctx context.Context, attempt int) (llm.StatementPayload, error) {
			if attempt > 1 {
				o.logger.Info("extract.page.retry", "page", page.Index, "attempt", attempt)
			}
			callCtx := ctx
			if o.cfg.AttemptTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, o.cfg.AttemptTimeout)
				defer cancel()
			}
			p, _, callErr := o.model.ExtractStatement(callCtx, req)
			if errors.Is(callErr, common.ErrRateLimited) {
				o.recorder.RecordRateLimit()
			}
			return p, callErr
		})

	o.recorder.RecordExtraction(string(page.Label), attempts, time.Since(start))
	if err != nil {
		return pageResult{attempts: attempts, err: err}, nil
	}

	record, err := o.toRecord(page, payload)
	if err != nil {
		return pageResult{attempts: attempts, err: err}, nil
	}
	return pageResult{record: record, attempts: attempts}, nil
}

// toRecord converts a parsed payload into the immutable per-page record. A
// classified page keeps its heuristic label; an unscored page takes the label
// the model identified.
func (o *Orchestrator) toRecord(page *entity.Page, payload llm.StatementPayload) (entity.ExtractionRecord, error) {
	label := page.Label
	if label == constants.Unclassified {
		canonical, ok := constants.CanonicalizeStatementType(payload.StatementType)
		if !ok {
			return entity.ExtractionRecord{}, fmt.Errorf("unrecognized statement type %q on unscored page", payload.StatementType)
		}
		label = canonical
	}

	items := make([]entity.LineItem, 0, len(payload.LineItems))
	for _, item := range payload.LineItems {
		values := make(map[int]float64, len(item.Values))
		for key, v := range item.Values {
			year, err := strconv.Atoi(key)
			if err != nil {
				continue
			}
			values[year] = v
		}
		if len(values) == 0 {
			continue
		}
		items = append(items, entity.LineItem{
			Category:   item.Category,
			Name:       item.Name,
			Values:     values,
			Confidence: item.Confidence,
		})
	}
	if len(items) == 0 {
		return entity.ExtractionRecord{}, common.ErrNoData
	}

	return entity.ExtractionRecord{
		PageIndex: page.Index,
		Label:     label,
		Years:     payload.Years,
		Items:     items,
	}, nil
}
