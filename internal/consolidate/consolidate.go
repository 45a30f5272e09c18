package consolidate

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ledgerlens/statement-extractor/constants"
	"github.com/ledgerlens/statement-extractor/internal/common"
	"github.com/ledgerlens/statement-extractor/internal/entity"
)

// LabelError is a per-label consolidation failure. Labels are independent;
// one label failing never blocks the others.
type LabelError struct {
	Label constants.StatementType `json:"label"`
	Err   error                   `json:"error"`
}

// Service folds per-page extraction records into one multi-year statement per
// label. The fold is a pure in-memory pass with no shared state across calls.
type Service struct {
	policy Policy
	logger *slog.Logger
}

func NewService(policy Policy, logger *slog.Logger) *Service {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{policy: policy, logger: logger}
}

// itemState accumulates one line-item identity across pages. The display
// contribution tracks which page currently supplies the name, category and
// item confidence so the policy can arbitrate later pages against it.
type itemState struct {
	name     string
	category string
	display  Contribution
	values   map[int]entity.YearValue
	pages    map[int]struct{}
}

type statementState struct {
	items map[string]*itemState
	pages map[int]struct{}
}

// Consolidate merges records into per-label statements. expected lists the
// labels classification promised content for; an expected label that ends up
// with no records is reported as a LabelError rather than an empty statement.
//
// Records are folded in ascending page order regardless of input order, and
// every value collision is decided by the configured policy, so the same
// input set always produces identical output.
func (s *Service) Consolidate(records []entity.ExtractionRecord, expected []constants.StatementType) (map[constants.StatementType]*entity.ConsolidatedStatement, []LabelError) {
	start := time.Now()

	ordered := make([]entity.ExtractionRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].PageIndex < ordered[j].PageIndex })

	states := make(map[constants.StatementType]*statementState)
	conflicts := 0
	for _, rec := range ordered {
		if rec.Label == "" || rec.Label == constants.Unclassified {
			s.logger.Warn("consolidate.skip.unlabeled", "page", rec.PageIndex)
			continue
		}
		st := states[rec.Label]
		if st == nil {
			st = &statementState{items: make(map[string]*itemState), pages: make(map[int]struct{})}
			states[rec.Label] = st
		}
		conflicts += s.fold(rec.Label, st, rec)
	}

	out := make(map[constants.StatementType]*entity.ConsolidatedStatement, len(states))
	for label, st := range states {
		out[label] = emit(label, st)
	}

	var errs []LabelError
	for _, label := range expected {
		if label == constants.Unclassified {
			continue
		}
		if _, ok := out[label]; !ok {
			errs = append(errs, LabelError{
				Label: label,
				Err: common.NewAppError(common.CodeConsolidationFailed,
					fmt.Sprintf("no extraction records for %s", label), nil),
			})
		}
	}

	s.logger.Info("consolidate.ok",
		"records", len(records),
		"labels", len(out),
		"conflicts", conflicts,
		"label_errors", len(errs),
		"policy", s.policy.Name(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, errs
}

// fold merges one record into st and returns the number of value conflicts
// the policy had to resolve.
func (s *Service) fold(label constants.StatementType, st *statementState, rec entity.ExtractionRecord) int {
	st.pages[rec.PageIndex] = struct{}{}
	conflicts := 0
	for _, li := range rec.Items {
		key := NormalizeName(li.Name)
		if key == "" {
			s.logger.Warn("consolidate.skip.unnamed", "label", label, "page", rec.PageIndex)
			continue
		}
		it := st.items[key]
		if it == nil {
			it = &itemState{values: make(map[int]entity.YearValue), pages: make(map[int]struct{})}
			st.items[key] = it
		}
		it.pages[rec.PageIndex] = struct{}{}

		display := Contribution{Confidence: li.Confidence, PageIndex: rec.PageIndex}
		if it.name == "" || s.policy.Prefer(it.display, display) {
			it.name = li.Name
			it.display = display
			if li.Category != "" {
				it.category = li.Category
			}
		} else if it.category == "" && li.Category != "" {
			it.category = li.Category
		}

		for year, value := range li.Values {
			cand := Contribution{Value: value, Confidence: li.Confidence, PageIndex: rec.PageIndex}
			cur, ok := it.values[year]
			if !ok {
				it.values[year] = entity.YearValue{Value: value, Confidence: li.Confidence, PageIndex: rec.PageIndex}
				continue
			}
			curc := Contribution{Value: cur.Value, Confidence: cur.Confidence, PageIndex: cur.PageIndex}
			preferCand := s.policy.Prefer(curc, cand)
			if cur.Value != value {
				conflicts++
				kept, dropped := cur.PageIndex, rec.PageIndex
				if preferCand {
					kept, dropped = rec.PageIndex, cur.PageIndex
				}
				s.logger.Debug("consolidate.conflict",
					"label", label,
					"item", key,
					"year", year,
					"kept_page", kept,
					"dropped_page", dropped,
				)
			}
			if preferCand {
				it.values[year] = entity.YearValue{Value: value, Confidence: li.Confidence, PageIndex: rec.PageIndex}
			}
		}
	}
	return conflicts
}

// emit freezes accumulated state into the immutable statement entity.
func emit(label constants.StatementType, st *statementState) *entity.ConsolidatedStatement {
	out := &entity.ConsolidatedStatement{
		Label: label,
		Items: make(map[string]*entity.ConsolidatedItem, len(st.items)),
		Pages: sortedPages(st.pages),
	}
	yearSet := make(map[int]struct{})
	for key, it := range st.items {
		for year := range it.values {
			yearSet[year] = struct{}{}
		}
		out.Items[key] = &entity.ConsolidatedItem{
			Key:        key,
			Name:       it.name,
			Category:   it.category,
			Values:     it.values,
			Confidence: it.display.Confidence,
			Pages:      sortedPages(it.pages),
		}
	}
	out.Years = make([]int, 0, len(yearSet))
	for year := range yearSet {
		out.Years = append(out.Years, year)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out.Years)))
	return out
}

func sortedPages(set map[int]struct{}) []int {
	pages := make([]int, 0, len(set))
	for p := range set {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}
